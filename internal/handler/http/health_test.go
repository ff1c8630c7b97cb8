package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getHealth(t *testing.T, h http.Handler) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		handler        *HealthHandler
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "all configured",
			handler: &HealthHandler{
				Providers:    map[string]bool{"cerebras": true, "gemini": true},
				GitHubToken:  true,
				CacheBackend: "memory",
			},
			expectedStatus: http.StatusOK,
			expectedBody:   statusHealthy,
		},
		{
			name: "missing credentials degrade",
			handler: &HealthHandler{
				Providers:    map[string]bool{"cerebras": false, "gemini": true},
				GitHubToken:  true,
				CacheBackend: "memory",
			},
			expectedStatus: http.StatusOK,
			expectedBody:   statusDegraded,
		},
		{
			name: "no github token degrades",
			handler: &HealthHandler{
				Providers:    map[string]bool{"cerebras": true},
				CacheBackend: "memory",
			},
			expectedStatus: http.StatusOK,
			expectedBody:   statusDegraded,
		},
		{
			name: "cache probe failure",
			handler: &HealthHandler{
				Providers:    map[string]bool{"cerebras": true},
				GitHubToken:  true,
				CacheBackend: "redis",
				CacheProbe:   func(context.Context) error { return errors.New("dial tcp: refused") },
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   statusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.handler.Version = "test-version"
			rec, resp := getHealth(t, tt.handler)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedBody, resp.Status)
			assert.Equal(t, "test-version", resp.Version)
			assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
			assert.Contains(t, resp.Services, "llm")
			assert.Contains(t, resp.Services, "github")
			assert.Contains(t, resp.Services, "cache")
		})
	}
}

func TestHealthHandler_ProviderDetails(t *testing.T) {
	h := &HealthHandler{
		Providers:    map[string]bool{"b": false, "a": true, "c": true},
		GitHubToken:  true,
		CacheBackend: "memory",
	}
	_, resp := getHealth(t, h)

	llm := resp.Services["llm"]
	assert.Equal(t, statusDegraded, llm.Status)
	assert.Equal(t, []any{"a", "c"}, llm.Details["configured"])
	assert.Equal(t, []any{"b"}, llm.Details["missing_credentials"])
}

func TestHealthHandler_DatabaseProbe(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(sqlmock.Sqlmock)
		expected  int
	}{
		{"healthy database", func(m sqlmock.Sqlmock) { m.ExpectPing() }, http.StatusOK},
		{"database connection error", func(m sqlmock.Sqlmock) { m.ExpectPing().WillReturnError(sql.ErrConnDone) }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.setupMock(mock)

			h := &HealthHandler{
				Providers:    map[string]bool{"cerebras": true},
				GitHubToken:  true,
				CacheBackend: "postgres",
				CacheProbe:   db.PingContext,
			}
			rec, resp := getHealth(t, h)
			assert.Equal(t, tt.expected, rec.Code)
			assert.Equal(t, "postgres", resp.Services["cache"].Details["backend"])
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReadyHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	(&ReadyHandler{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	rec = httptest.NewRecorder()
	h := &ReadyHandler{Probe: func(context.Context) error { return errors.New("down") }}
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LiveHandler{}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", rec.Body.String())
}
