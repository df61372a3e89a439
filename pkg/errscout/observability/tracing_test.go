package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest installs an in-memory tracer provider for the test.
func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("errscout")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		tracer = otel.Tracer("errscout")
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return exporter
}

func attrValue(attrs []attribute.KeyValue, key string) string {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.Emit()
		}
	}
	return ""
}

func TestSpanManager_SessionAndProbe(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, session := sm.StartSessionSpan(context.Background(), "run-1", "sweep")
	_, probe := sm.StartProbeSpan(ctx, "KV", "getValue")
	sm.EndSpanWithError(probe, errors.New("NotFoundError"))
	sm.EndSpanWithError(session, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	p, s := spans[0], spans[1]
	assert.Equal(t, "errscout.probe", p.Name)
	assert.Equal(t, "KV", attrValue(p.Attributes, "service"))
	assert.Equal(t, "getValue", attrValue(p.Attributes, "operation"))
	assert.Equal(t, codes.Error, p.Status.Code)
	assert.Len(t, p.Events, 1, "error is recorded as an event")
	assert.Equal(t, s.SpanContext.SpanID(), p.Parent.SpanID())

	assert.Equal(t, "errscout.session", s.Name)
	assert.Equal(t, "run-1", attrValue(s.Attributes, "run.id"))
	assert.Equal(t, codes.Ok, s.Status.Code)
}

func TestSpanManager_AddSpanEvent(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartSessionSpan(context.Background(), "run-2", "script")
	sm.AddSpanEvent(ctx, "discovery", attribute.String("key", "KV.getValue/UnknownError/0"))
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "discovery", spans[0].Events[0].Name)

	// no span in context: must not panic
	sm.AddSpanEvent(context.Background(), "ignored")
	sm.EndSpanWithError(nil, nil)
}
