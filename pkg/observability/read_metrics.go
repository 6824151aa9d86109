package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricReadsTotal        = "rtalign.reads.total"
	metricSamplesTotal      = "rtalign.samples.total"
	metricBackpressureTotal = "rtalign.backpressure.total"
	metricDiscardedTotal    = "rtalign.samples.discarded.total"
	metricSeedsTotal        = "rtalign.seeds.total"
	metricChainsTotal       = "rtalign.chains.total"
	metricReadDuration      = "rtalign.read.duration.seconds"
	metricBestLength        = "rtalign.read.best_length"

	attrEvent   = "event"
	attrAligned = "aligned"
)

// bestLengthBuckets spans single seeds to long chains.
var bestLengthBuckets = []float64{0, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// ReadMetrics holds OTel instruments for per-read streaming statistics.
type ReadMetrics struct {
	reads        metric.Int64Counter
	samples      metric.Int64Counter
	backpressure metric.Int64Counter
	discarded    metric.Int64Counter
	seeds        metric.Int64Counter
	chains       metric.Int64Counter
	duration     metric.Float64Histogram
	bestLength   metric.Float64Histogram
}

// ReadStats holds the statistics of one processed read, decoupled from the
// session types that produce them.
type ReadStats struct {
	Samples      int64
	Backpressure int64
	Discarded    int64
	Seeds        int64
	Created      int64
	Merged       int64
	Joined       int64
	BestLength   int
	Aligned      bool
	Duration     time.Duration
}

// NewReadMetrics creates read metric instruments from the given meter.
func NewReadMetrics(mt metric.Meter) (*ReadMetrics, error) {
	in := newInstruments(mt)

	rm := &ReadMetrics{
		reads:        in.counter(metricReadsTotal, "Total reads processed", "{read}"),
		samples:      in.counter(metricSamplesTotal, "Total raw samples pushed", "{sample}"),
		backpressure: in.counter(metricBackpressureTotal, "Pushes refused by a full buffer", "{event}"),
		discarded:    in.counter(metricDiscardedTotal, "Samples dropped without being read", "{sample}"),
		seeds:        in.counter(metricSeedsTotal, "Total seed hits consumed", "{seed}"),
		chains:       in.counter(metricChainsTotal, "Chain lifecycle events by type", "{chain}"),
		duration:     in.histogram(metricReadDuration, "Per-read processing duration in seconds", "s", durationBucketBoundaries...),
		bestLength:   in.histogram(metricBestLength, "Best chain length per read", "{position}", bestLengthBuckets...),
	}

	err := in.err()
	if err != nil {
		return nil, fmt.Errorf("read metrics: %w", err)
	}

	return rm, nil
}

// RecordRead records the statistics of a completed read.
// Safe to call on a nil receiver (no-op).
func (rm *ReadMetrics) RecordRead(ctx context.Context, stats ReadStats) {
	if rm == nil {
		return
	}

	rm.reads.Add(ctx, 1, metric.WithAttributes(attribute.Bool(attrAligned, stats.Aligned)))
	rm.samples.Add(ctx, stats.Samples)
	rm.backpressure.Add(ctx, stats.Backpressure)
	rm.discarded.Add(ctx, stats.Discarded)
	rm.seeds.Add(ctx, stats.Seeds)

	rm.chains.Add(ctx, stats.Created, metric.WithAttributes(attribute.String(attrEvent, "created")))
	rm.chains.Add(ctx, stats.Merged, metric.WithAttributes(attribute.String(attrEvent, "merged")))
	rm.chains.Add(ctx, stats.Joined, metric.WithAttributes(attribute.String(attrEvent, "joined")))

	rm.duration.Record(ctx, stats.Duration.Seconds())
	rm.bestLength.Record(ctx, float64(stats.BestLength))
}
