package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sourcesage/internal/handler/http/requestid"
	"sourcesage/internal/observability/metrics"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mark("outer"), mark("middle"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "middle", "inner"}, order)
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("token sk-ant-REDACTED leaked")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-ant")
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), requestid.Middleware, Logging(logger))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestid.RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-42"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"bytes":15`)
	assert.Contains(t, out, `"path":"/api/health"`)
}

func TestLimitRequestBody(t *testing.T) {
	h := LimitRequestBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("tiny")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("far too large a body")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /api/download/{filename}", okHandler())
	h := Metrics(mux)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/download/{filename}", "200")
	before := testutil.ToFloat64(counter)
	samplesBefore := histogramSamples(t, metrics.HTTPRequestDuration.WithLabelValues(http.MethodGet, "/api/download/{filename}", "200"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/download/proposal_0123abcd.md", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/download/proposal_89abcdef.md", nil))
	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Equal(t, samplesBefore+2, histogramSamples(t, metrics.HTTPRequestDuration.WithLabelValues(http.MethodGet, "/api/download/{filename}", "200")))

	unmatched := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}

func histogramSamples(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	m, ok := o.(prometheus.Metric)
	require.True(t, ok)
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	return out.GetHistogram().GetSampleCount()
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		origin      string
		method      string
		wantAllowed bool
		wantStatus  int
	}{
		{"allowed origin", []string{"http://localhost:3000"}, "http://localhost:3000", http.MethodGet, true, http.StatusOK},
		{"trailing slash in config", []string{"http://localhost:3000/"}, "http://localhost:3000", http.MethodGet, true, http.StatusOK},
		{"foreign origin", []string{"http://localhost:3000"}, "http://evil.example", http.MethodGet, false, http.StatusOK},
		{"wildcard", []string{"*"}, "http://anything.example", http.MethodGet, true, http.StatusOK},
		{"preflight", []string{"*"}, "http://anything.example", http.MethodOptions, true, http.StatusNoContent},
		{"no origin header", []string{"*"}, "", http.MethodGet, false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.origins)(okHandler())
			req := httptest.NewRequest(tt.method, "/api/search-issues", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantAllowed {
				assert.Equal(t, tt.origin, rec.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl, err := NewRateLimiter(1, 2, 16)
	require.NoError(t, err)
	h := rl.Limit(okHandler())

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:2222").Code)
	limited := call("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1111").Code)
}

func TestNewRateLimiter_Invalid(t *testing.T) {
	_, err := NewRateLimiter(0, 1, 16)
	assert.Error(t, err)
	_, err = NewRateLimiter(10, 1, 0)
	assert.Error(t, err)
}
