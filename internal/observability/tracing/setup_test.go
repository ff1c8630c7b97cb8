package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Setup(context.Background(), Config{ServiceName: "sourcesage"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestSetup_WithEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	shutdown, err := Setup(context.Background(), Config{
		Endpoint:    "http://127.0.0.1:1",
		Headers:     "x-api-key=secret",
		ServiceName: "sourcesage-test",
	})
	require.NoError(t, err)
	assert.NotEqual(t, before, otel.GetTracerProvider())

	// nothing was recorded, so shutdown has nothing to flush
	assert.NoError(t, shutdown(context.Background()))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318/")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "a=1")
	t.Setenv("OTEL_SERVICE_NAME", "")

	cfg := ConfigFromEnv("sourcesage")
	assert.Equal(t, "http://collector:4318", cfg.Endpoint)
	assert.Equal(t, "a=1", cfg.Headers)
	assert.Equal(t, "sourcesage", cfg.ServiceName)
}

func TestParseHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, parseHeaders(" a = 1 ,b=x=y,broken,=skip"))
	assert.Empty(t, parseHeaders(""))
}
