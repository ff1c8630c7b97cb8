package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"sourcesage/pkg/config"
)

// Config selects the OTLP endpoint. An empty Endpoint disables export.
type Config struct {
	Endpoint    string
	Headers     string
	ServiceName string
}

// ConfigFromEnv reads the standard OTEL_EXPORTER_OTLP_* variables.
func ConfigFromEnv(serviceName string) Config {
	return Config{
		Endpoint:    strings.TrimRight(config.GetEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "/"),
		Headers:     config.GetEnvString("OTEL_EXPORTER_OTLP_HEADERS", ""),
		ServiceName: config.GetEnvString("OTEL_SERVICE_NAME", serviceName),
	}
}

// Shutdown flushes and stops the exporter.
type Shutdown func(context.Context) error

// Setup installs a batching OTLP/HTTP tracer provider as the global
// provider. With no endpoint it leaves the no-op provider in place and
// returns a no-op Shutdown.
func Setup(ctx context.Context, cfg Config) (Shutdown, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint+"/v1/traces"),
		otlptracehttp.WithHeaders(parseHeaders(cfg.Headers)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// parseHeaders reads "k1=v1,k2=v2".
func parseHeaders(s string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if ok && strings.TrimSpace(k) != "" {
			headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return headers
}
