package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by this service.
const TracerName = "sourcesage"

// GetTracer returns the tracer from the current global provider.
//
//	ctx, span := tracing.GetTracer().Start(ctx, "pipeline.stage.planning")
//	defer span.End()
func GetTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
