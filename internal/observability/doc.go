// Package observability groups the logging, metrics and tracing packages
// shared by the API server, the sweep worker and the CLI.
//
// Subpackages:
//
//   - logging: slog construction from LOG_LEVEL and LOG_FORMAT, request-scoped loggers
//
//   - metrics: Prometheus collectors and Record* helpers
//
//   - tracing: OpenTelemetry setup, tracer access and HTTP middleware
//
//     logger := logging.NewLogger()
//     shutdown, err := tracing.Setup(ctx, tracing.ConfigFromEnv("sourcesage-api"))
//     metrics.RecordPipelineRun(false)
package observability
