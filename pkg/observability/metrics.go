package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "rtalign.requests.total"
	metricRequestDuration  = "rtalign.request.duration.seconds"
	metricErrorsTotal      = "rtalign.errors.total"
	metricInflightRequests = "rtalign.inflight.requests"

	attrOp     = "op"
	attrStatus = "status"

	// StatusOK marks a successful operation.
	StatusOK = "ok"
	// StatusError marks a failed operation.
	StatusError = "error"
)

// durationBucketBoundaries covers 100us to 60s: a single chunk push is
// sub-millisecond while a full replay of a long read takes seconds.
var durationBucketBoundaries = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// REDMetrics records rate, errors and duration per operation. Operations are
// CLI commands, processed reads and metrics server routes. All methods are
// no-ops on a nil receiver.
type REDMetrics struct {
	calls    metric.Int64Counter
	latency  metric.Float64Histogram
	failures metric.Int64Counter
	inflight metric.Int64UpDownCounter
}

// NewREDMetrics creates the RED instruments on mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	in := newInstruments(mt)

	red := &REDMetrics{
		calls:    in.counter(metricRequestsTotal, "Operations started and finished", "{request}"),
		latency:  in.histogram(metricRequestDuration, "Operation duration", "s", durationBucketBoundaries...),
		failures: in.counter(metricErrorsTotal, "Operations that finished with an error", "{error}"),
		inflight: in.upDownCounter(metricInflightRequests, "Operations currently running", "{request}"),
	}

	err := in.err()
	if err != nil {
		return nil, fmt.Errorf("red metrics: %w", err)
	}

	return red, nil
}

// RecordRequest counts one finished op. StatusError also bumps the error
// counter, which carries only the op attribute.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	if rm == nil {
		return
	}

	opAttr := attribute.String(attrOp, op)
	both := metric.WithAttributes(opAttr, attribute.String(attrStatus, status))

	rm.calls.Add(ctx, 1, both)
	rm.latency.Record(ctx, duration.Seconds(), both)

	if status == StatusError {
		rm.failures.Add(ctx, 1, metric.WithAttributes(opAttr))
	}
}

// TrackInflight marks op as running until the returned func is called.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	if rm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflight.Add(ctx, 1, attrs)

	return func() { rm.inflight.Add(ctx, -1, attrs) }
}
