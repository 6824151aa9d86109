package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// SpanReadChunk is the per-chunk span name emitted while streaming a read.
const SpanReadChunk = "rtalign.read.chunk"

// NewFilteringTracerProvider wraps delegate so spans named in drop, or
// SpanReadChunk when drop is empty, come back non-recording. The
// non-recording span still carries its parent's context.
func NewFilteringTracerProvider(delegate trace.TracerProvider, drop ...string) trace.TracerProvider {
	if len(drop) == 0 {
		drop = []string{SpanReadChunk}
	}

	names := make(map[string]struct{}, len(drop))
	for _, name := range drop {
		names[name] = struct{}{}
	}

	return &dropProvider{delegate: delegate, drop: names}
}

type dropProvider struct {
	embedded.TracerProvider

	delegate trace.TracerProvider
	drop     map[string]struct{}
}

func (p *dropProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &dropTracer{
		Tracer:   p.delegate.Tracer(name, opts...),
		fallback: nooptrace.NewTracerProvider().Tracer(name, opts...),
		drop:     p.drop,
	}
}

type dropTracer struct {
	trace.Tracer

	fallback trace.Tracer
	drop     map[string]struct{}
}

func (t *dropTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if _, ok := t.drop[name]; ok {
		return t.fallback.Start(ctx, name, opts...)
	}

	return t.Tracer.Start(ctx, name, opts...)
}
