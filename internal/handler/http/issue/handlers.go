package issue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/handler/http/respond"
	"sourcesage/internal/infra/renderer"
	"sourcesage/internal/usecase/analyze"
	"sourcesage/internal/usecase/discover"
)

// Searcher runs issue searches.
type Searcher interface {
	Search(ctx context.Context, in discover.Input) (*discover.Result, error)
}

// Analyzer runs analysis requests.
type Analyzer interface {
	Analyze(ctx context.Context, req analyze.Request) (*analyze.Result, error)
}

// FileResolver maps a download filename to a path on disk.
type FileResolver interface {
	Path(name string) (string, error)
}

// SearchHandler serves POST /api/search-issues.
type SearchHandler struct{ Svc Searcher }

func (h SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		respond.SafeError(w, err)
		return
	}
	res, err := h.Svc.Search(r.Context(), req.input())
	if err != nil {
		respond.SafeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toSearchResponse(res))
}

// AnalyzeHandler serves POST /api/analyze.
type AnalyzeHandler struct{ Svc Analyzer }

func (h AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.Svc.Analyze(r.Context(), analyze.Request{
		IssueURLs:       req.IssueURLs,
		GenerateReports: req.GenerateReports,
	})
	if err != nil {
		respond.SafeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toAnalyzeResponse(res))
}

// DownloadHandler serves GET /api/download/{filename}.
type DownloadHandler struct{ Files FileResolver }

func (h DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	path, err := h.Files.Path(name)
	if err != nil {
		if errors.Is(err, renderer.ErrInvalidFilename) {
			respond.Error(w, http.StatusBadRequest, "invalid filename")
			return
		}
		respond.SafeError(w, err)
		return
	}

	// #nosec G304 -- path is validated against the proposal filename pattern
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respond.Error(w, http.StatusNotFound, "File not found")
			return
		}
		respond.SafeError(w, err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		respond.SafeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// decodeJSON reads a single JSON object, rejecting unknown fields. It
// writes the error response itself and reports whether decoding worked.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = errors.New("request body must contain a single JSON object")
	}
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		respond.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	respond.SafeError(w, &entity.ValidationError{Field: "body", Message: err.Error()})
	return false
}
