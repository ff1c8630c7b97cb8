package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"sourcesage/internal/handler/http/respond"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version"`
	Services  map[string]CheckStatus `json:"services"`
}

// CheckStatus is the state of one dependency.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Probe checks a backing service, typically by pinging it.
type Probe func(ctx context.Context) error

// HealthHandler reports which LLM providers have credentials, whether a
// GitHub token is set, and whether the cache backend answers.
//
// Missing provider credentials degrade the service but do not fail it:
// the pipeline still produces template output. A failing cache probe
// answers 503.
type HealthHandler struct {
	Version string
	// Providers maps provider name to whether its credential is present.
	Providers    map[string]bool
	GitHubToken  bool
	CacheBackend string
	CacheProbe   Probe
	Timeout      time.Duration
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	services := map[string]CheckStatus{
		"llm":    h.checkProviders(),
		"github": h.checkGitHub(),
		"cache":  h.checkCache(ctx),
	}

	status, code := statusHealthy, http.StatusOK
	for _, c := range services {
		switch c.Status {
		case statusUnhealthy:
			status, code = statusUnhealthy, http.StatusServiceUnavailable
		case statusDegraded:
			if status == statusHealthy {
				status = statusDegraded
			}
		}
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.Version,
		Services:  services,
	})
}

func (h *HealthHandler) checkProviders() CheckStatus {
	var ready, missing []string
	for name, ok := range h.Providers {
		if ok {
			ready = append(ready, name)
		} else {
			missing = append(missing, name)
		}
	}
	sort.Strings(ready)
	sort.Strings(missing)

	details := map[string]any{"configured": ready, "missing_credentials": missing}
	switch {
	case len(ready) == 0:
		return CheckStatus{Status: statusDegraded, Message: "no provider credentials; template fallbacks only", Details: details}
	case len(missing) > 0:
		return CheckStatus{Status: statusDegraded, Message: "some providers have no credentials", Details: details}
	default:
		return CheckStatus{Status: statusHealthy, Details: details}
	}
}

func (h *HealthHandler) checkGitHub() CheckStatus {
	if !h.GitHubToken {
		return CheckStatus{Status: statusDegraded, Message: "no token; unauthenticated rate limits apply"}
	}
	return CheckStatus{Status: statusHealthy}
}

func (h *HealthHandler) checkCache(ctx context.Context) CheckStatus {
	details := map[string]any{"backend": h.CacheBackend}
	if h.CacheProbe == nil {
		return CheckStatus{Status: statusHealthy, Details: details}
	}
	start := time.Now()
	if err := h.CacheProbe(ctx); err != nil {
		slog.Default().Warn("cache probe failed",
			slog.String("backend", h.CacheBackend),
			slog.String("error", respond.SanitizeError(err)))
		return CheckStatus{Status: statusUnhealthy, Message: "cache backend unreachable", Details: details}
	}
	details["latency_ms"] = time.Since(start).Milliseconds()
	return CheckStatus{Status: statusHealthy, Details: details}
}

// ReadyHandler answers readiness probes: 200 once the cache backend answers.
type ReadyHandler struct {
	Probe Probe
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.Probe != nil {
		if err := h.Probe(ctx); err != nil {
			respond.Error(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LiveHandler answers liveness probes.
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
