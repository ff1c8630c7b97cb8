package llm

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRecorder receives one event per provider attempt and per call.
type MetricsRecorder interface {
	// RecordAttempt records a single provider attempt; outcome is "success"
	// or a FailureKind name.
	RecordAttempt(provider, outcome string)

	// RecordFallback records that the client moved past a provider.
	RecordFallback(provider string, kind FailureKind)

	// RecordCall records the overall result of Generate.
	RecordCall(outcome string, duration time.Duration)
}

// PrometheusMetrics implements MetricsRecorder with Prometheus collectors.
type PrometheusMetrics struct {
	attempts  *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	calls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

var (
	prometheusMetricsInstance *PrometheusMetrics
	prometheusMetricsOnce     sync.Once
)

func getOrCreateCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		return promauto.NewCounterVec(opts, labels)
	}
	return c
}

func getOrCreateHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
		return promauto.NewHistogramVec(opts, labels)
	}
	return h
}

// NewPrometheusMetrics returns the process-wide recorder, registering the
// collectors on first use.
func NewPrometheusMetrics() *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetricsInstance = &PrometheusMetrics{
			attempts: getOrCreateCounterVec(prometheus.CounterOpts{
				Name: "llm_provider_attempts_total",
				Help: "Provider attempts by outcome",
			}, []string{"provider", "outcome"}),
			fallbacks: getOrCreateCounterVec(prometheus.CounterOpts{
				Name: "llm_provider_fallbacks_total",
				Help: "Times the client moved past a provider, by the failure that caused it",
			}, []string{"provider", "kind"}),
			calls: getOrCreateCounterVec(prometheus.CounterOpts{
				Name: "llm_calls_total",
				Help: "Generate calls by final outcome",
			}, []string{"outcome"}),
			duration: getOrCreateHistogramVec(prometheus.HistogramOpts{
				Name:    "llm_call_duration_seconds",
				Help:    "Wall time of Generate including retries and backoff",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			}, []string{"outcome"}),
		}
	})
	return prometheusMetricsInstance
}

func (p *PrometheusMetrics) RecordAttempt(provider, outcome string) {
	p.attempts.WithLabelValues(provider, outcome).Inc()
}

func (p *PrometheusMetrics) RecordFallback(provider string, kind FailureKind) {
	p.fallbacks.WithLabelValues(provider, kind.String()).Inc()
}

func (p *PrometheusMetrics) RecordCall(outcome string, duration time.Duration) {
	p.calls.WithLabelValues(outcome).Inc()
	p.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordAttempt(string, string)       {}
func (NoopMetrics) RecordFallback(string, FailureKind) {}
func (NoopMetrics) RecordCall(string, time.Duration)   {}
