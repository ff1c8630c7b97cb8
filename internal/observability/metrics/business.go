package metrics

import (
	"time"
)

// RecordStage records one stage execution. Outcome is "success" or "error".
func RecordStage(stage string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	PipelineStageDuration.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

// RecordPipelineRun records the final outcome of a machine run.
func RecordPipelineRun(aborted bool) {
	outcome := "completed"
	if aborted {
		outcome = "aborted"
	}
	PipelineRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordRestart records a routing decision that re-entered discovery.
func RecordRestart() {
	PipelineRestartsTotal.Inc()
}

// RecordDegradedOutput records that stage fell back to template text.
func RecordDegradedOutput(stage string) {
	DegradedOutputsTotal.WithLabelValues(stage).Inc()
}

// RecordReportGenerated records one rendered proposal document.
func RecordReportGenerated() {
	ReportsGeneratedTotal.Inc()
}

// RecordIssuesDiscovered records issues returned to a caller. Origin is
// "cache" or "search".
func RecordIssuesDiscovered(origin string, count int) {
	IssuesDiscoveredTotal.WithLabelValues(origin).Add(float64(count))
}

// RecordCacheLookup records a cache read. Result is one of hit, miss,
// expired or error.
func RecordCacheLookup(namespace, result string) {
	CacheLookupsTotal.WithLabelValues(namespace, result).Inc()
}

// RecordCacheWriteError records a dropped cache write.
func RecordCacheWriteError(namespace string) {
	CacheWriteErrorsTotal.WithLabelValues(namespace).Inc()
}

// RecordCacheSweep records one sweep run and the entries it removed.
func RecordCacheSweep(deleted int64, duration time.Duration) {
	if deleted > 0 {
		CacheSweepDeletedTotal.Add(float64(deleted))
	}
	CacheSweepRunsTotal.WithLabelValues("success").Inc()
	CacheSweepDuration.Observe(duration.Seconds())
}

// RecordCacheSweepFailure records a sweep run that returned an error.
func RecordCacheSweepFailure(duration time.Duration) {
	CacheSweepRunsTotal.WithLabelValues("failure").Inc()
	CacheSweepDuration.Observe(duration.Seconds())
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "cache_get", "cache_put").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBreakerState records a breaker moving into state. The numeric value
// follows gobreaker's ordering.
func RecordBreakerState(breaker, to string, value int) {
	BreakerState.WithLabelValues(breaker).Set(float64(value))
	BreakerTransitionsTotal.WithLabelValues(breaker, to).Inc()
}

// RecordCacheBackendUp records whether a cache backend could be opened.
func RecordCacheBackendUp(backend string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	CacheBackendUp.WithLabelValues(backend).Set(v)
}
