// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// ActiveConnections tracks open WebSocket progress streams
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Number of open WebSocket connections",
		},
	)
)

// Pipeline metrics
var (
	// PipelineRunsTotal counts machine runs by final outcome (completed, aborted)
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	// PipelineStageDuration measures each stage execution
	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Time spent in a pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"stage", "outcome"},
	)

	// PipelineRestartsTotal counts re-entries into discovery
	PipelineRestartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_restarts_total",
			Help: "Total number of discovery restarts",
		},
	)

	// DegradedOutputsTotal counts template text substituted for model output
	DegradedOutputsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_degraded_outputs_total",
			Help: "Times a stage wrote template text because no provider answered",
		},
		[]string{"stage"},
	)

	// ReportsGeneratedTotal counts rendered proposal documents
	ReportsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reports_generated_total",
			Help: "Total number of proposal documents rendered",
		},
	)

	// IssuesDiscoveredTotal counts issues returned by discovery
	IssuesDiscoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issues_discovered_total",
			Help: "Issues returned by discovery, by origin (cache, search)",
		},
		[]string{"origin"},
	)
)

// Cache metrics
var (
	// CacheLookupsTotal counts cache reads by namespace and result (hit, miss, expired, error)
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache reads by namespace and result",
		},
		[]string{"namespace", "result"},
	)

	// CacheWriteErrorsTotal counts failed cache writes
	CacheWriteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_write_errors_total",
			Help: "Cache writes that failed and were dropped",
		},
		[]string{"namespace"},
	)

	// CacheBackendUp is 1 when the cache backend was reachable at startup
	CacheBackendUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_backend_up",
			Help: "Whether the cache backend was reachable when the process started",
		},
		[]string{"backend"},
	)

	// CacheSweepDeletedTotal counts entries removed by the periodic sweep
	CacheSweepDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_sweep_deleted_total",
			Help: "Expired entries removed by the sweep job",
		},
	)

	// CacheSweepRunsTotal counts sweep runs by result (success, failure)
	CacheSweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_sweep_runs_total",
			Help: "Sweep job runs by result",
		},
		[]string{"result"},
	)

	// CacheSweepDuration measures sweep runs
	CacheSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cache_sweep_duration_seconds",
			Help:    "Time taken by one sweep run",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	// DBQueryDuration measures cache database queries
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)
)

// Breaker metrics
var (
	// BreakerState reports 0 closed, 1 half-open, 2 open per breaker name
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	// BreakerTransitionsTotal counts state changes by target state
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state changes",
		},
		[]string{"breaker", "to"},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
