package observability

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// AttributePolicy decides which span attribute keys reach the exporter.
// An entry ending in "." matches every key with that prefix; any other entry
// matches one key exactly. Deny wins over Allow, and keys matched by neither
// are dropped.
type AttributePolicy struct {
	Allow []string
	Deny  []string
}

// DefaultAttributePolicy allows the namespaces the aligner and the metrics
// server emit and denies raw sample payloads, local file paths and anything
// user-identifying.
func DefaultAttributePolicy() AttributePolicy {
	return AttributePolicy{
		Allow: []string{
			"rtalign.", "read.", "worker.", "tracker.", "chain.", "normalizer.",
			"http.", "error.", "error",
		},
		Deny: []string{
			"read.signal.", "read.path", "file.path",
			"user.", "email", "request.body", "response.body",
		},
	}
}

func matchAny(entries []string, key string) bool {
	return slices.ContainsFunc(entries, func(entry string) bool {
		if strings.HasSuffix(entry, ".") {
			return strings.HasPrefix(key, entry)
		}

		return key == entry
	})
}

// Permits reports whether key may be exported.
func (p AttributePolicy) Permits(key string) bool {
	if matchAny(p.Deny, key) {
		return false
	}

	return matchAny(p.Allow, key)
}

// attributeFilter applies an AttributePolicy to ended spans before handing
// them to the wrapped processor. Verdicts are cached per key; a dropped key
// is logged once.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
	policy   AttributePolicy
	logger   *slog.Logger
	verdicts sync.Map // string -> bool
}

// NewAttributeFilter wraps delegate with policy. A nil logger drops
// attributes silently.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, policy AttributePolicy, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, policy: policy, logger: logger}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, keep: f.keep})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	err := f.delegate.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	err := f.delegate.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func (f *attributeFilter) keep(key attribute.Key) bool {
	if v, ok := f.verdicts.Load(key); ok {
		return v.(bool) //nolint:forcetypeassert // only bools are stored.
	}

	verdict := f.policy.Permits(string(key))

	if _, loaded := f.verdicts.LoadOrStore(key, verdict); !loaded && !verdict && f.logger != nil {
		f.logger.Warn("span attribute dropped", "key", string(key))
	}

	return verdict
}

// filteredSpan exposes only the attributes keep accepts.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	keep func(attribute.Key) bool
}

func (s *filteredSpan) Attributes() []attribute.KeyValue {
	return slices.DeleteFunc(slices.Clone(s.ReadOnlySpan.Attributes()), func(kv attribute.KeyValue) bool {
		return !s.keep(kv.Key)
	})
}
