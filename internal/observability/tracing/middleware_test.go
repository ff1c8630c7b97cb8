package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return exporter
}

func attrs(span tracetest.SpanStub) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestMiddleware_RecordsSpan(t *testing.T) {
	exporter := installRecorder(t)

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "POST /api/analyze", span.Name)

	a := attrs(span)
	assert.Equal(t, int64(http.StatusAccepted), a["http.status_code"].AsInt64())
	assert.Equal(t, "POST", a["http.method"].AsString())
	assert.Equal(t, "/api/analyze", a["http.path"].AsString())
	assert.Equal(t, codes.Unset, span.Status.Code)

	assert.Equal(t, span.SpanContext.TraceID().String(), rec.Header().Get("X-Trace-Id"))
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	exporter := installRecorder(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")

	Middleware(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, traceID, spans[0].SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent.SpanID().String())
}

func TestMiddleware_ServerErrorMarksSpan(t *testing.T) {
	exporter := installRecorder(t)

	for _, tc := range []struct {
		status int
		want   codes.Code
	}{
		{http.StatusBadGateway, codes.Error},
		{http.StatusUnprocessableEntity, codes.Unset},
	} {
		exporter.Reset()
		h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, tc.want, spans[0].Status.Code, http.StatusText(tc.status))
	}
}

func TestMiddleware_HandlerSeesSpanContext(t *testing.T) {
	installRecorder(t)

	var valid bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, span := GetTracer().Start(r.Context(), "child")
		valid = span.SpanContext().IsValid()
		span.End()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, valid)
}
