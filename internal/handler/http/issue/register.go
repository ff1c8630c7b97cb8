package issue

import (
	"net/http"
)

// Routes bundles the handlers mounted by Register.
type Routes struct {
	Search   SearchHandler
	Analyze  AnalyzeHandler
	Download DownloadHandler
	Progress *ProgressHandler

	// Expensive wraps the LLM-backed endpoints, e.g. with a rate limiter.
	Expensive func(http.Handler) http.Handler
}

// Register mounts the issue endpoints on mux. Routes without a backing
// service are left unmounted.
func Register(mux *http.ServeMux, rt Routes) {
	wrap := rt.Expensive
	if wrap == nil {
		wrap = func(h http.Handler) http.Handler { return h }
	}
	if rt.Search.Svc != nil {
		mux.Handle("POST /api/search-issues", wrap(rt.Search))
	}
	if rt.Analyze.Svc != nil {
		mux.Handle("POST /api/analyze", wrap(rt.Analyze))
	}
	if rt.Download.Files != nil {
		mux.Handle("GET /api/download/{filename}", rt.Download)
	}
	if rt.Progress != nil {
		mux.Handle("GET /api/ws", rt.Progress)
	}
}
