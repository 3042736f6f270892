package bind

import (
	"context"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SpanStarter is a tracing hook interface for creating spans per request.
// NewOTelTracer adapts an OpenTelemetry TracerProvider.
type SpanStarter interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func())
}

type otelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer returns a SpanStarter backed by tp.
func NewOTelTracer(tp trace.TracerProvider) SpanStarter {
	return &otelTracer{tracer: tp.Tracer("github.com/bjaus/bind")}
}

func (t *otelTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func()) {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		kvs = append(kvs, attribute.String(k, attrs[k]))
	}
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(kvs...))
	return ctx, func() { span.End() }
}

// startSpan starts a span on s, or does nothing when s is nil.
func startSpan(ctx context.Context, s SpanStarter, name string, attrs map[string]string) (context.Context, func()) {
	if s == nil {
		return ctx, func() {}
	}
	return s.StartSpan(ctx, name, attrs)
}
