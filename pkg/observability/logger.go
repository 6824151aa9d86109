package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Log attribute keys added by TracingHandler.
const (
	LogKeyTraceID = "trace_id"
	LogKeySpanID  = "span_id"
	LogKeyRead    = "read"

	logKeyService = "service"
	logKeyEnv     = "env"
	logKeyMode    = "mode"
)

type readKey struct{}

// ContextWithRead tags ctx with the id of the read being processed. Records
// logged with the returned context carry it under LogKeyRead.
func ContextWithRead(ctx context.Context, readID string) context.Context {
	return context.WithValue(ctx, readKey{}, readID)
}

// ReadFromContext returns the read id set by ContextWithRead.
func ReadFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(readKey{}).(string)

	return id, ok && id != ""
}

// TracingHandler is an [slog.Handler] that adds the active span and read to
// every record. Service, env and mode are bound once at construction so they
// stay top level under WithGroup.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner. env is omitted when empty.
func NewTracingHandler(inner slog.Handler, service, env string, appMode AppMode) *TracingHandler {
	bound := make([]slog.Attr, 0, 3)
	bound = append(bound, slog.String(logKeyService, service), slog.String(logKeyMode, string(appMode)))

	if env != "" {
		bound = append(bound, slog.String(logKeyEnv, env))
	}

	return &TracingHandler{inner: inner.WithAttrs(bound)}
}

func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(LogKeyTraceID, sc.TraceID().String()),
			slog.String(LogKeySpanID, sc.SpanID().String()),
		)
	}

	if id, ok := ReadFromContext(ctx); ok {
		record.AddAttrs(slog.String(LogKeyRead, id))
	}

	err := th.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}
