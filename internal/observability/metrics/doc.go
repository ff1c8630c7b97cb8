// Package metrics holds the process-wide Prometheus collectors for HTTP
// traffic, pipeline runs, the result cache and its database, plus small
// Record* helpers used by the rest of the application.
package metrics
