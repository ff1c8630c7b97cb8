// Package tracing wires OpenTelemetry. Setup installs an OTLP/HTTP exporter
// when OTEL_EXPORTER_OTLP_ENDPOINT is set and is a no-op otherwise, so spans
// started through GetTracer are always safe to create.
//
//	shutdown, err := tracing.Setup(ctx, tracing.ConfigFromEnv("sourcesage-api"))
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
//
//	ctx, span := tracing.GetTracer().Start(ctx, "pipeline.Run")
//	defer span.End()
package tracing
