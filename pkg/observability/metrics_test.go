package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/rtalign/pkg/observability"
)

func setupTestMeter(t *testing.T) (*observability.REDMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	red, err := observability.NewREDMetrics(meter)
	require.NoError(t, err)

	return red, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

// counterByOp sums an int64 sum metric per "op" attribute.
func counterByOp(t *testing.T, rm metricdata.ResourceMetrics, name string) map[string]int64 {
	t.Helper()

	m := findMetric(rm, name)
	require.NotNil(t, m, name)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, name)

	out := make(map[string]int64, len(sum.DataPoints))

	for _, dp := range sum.DataPoints {
		op, _ := dp.Attributes.Value(attribute.Key("op"))
		out[op.AsString()] += dp.Value
	}

	return out
}

func TestREDMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)
	ctx := context.Background()

	red.RecordRequest(ctx, "normalize", observability.StatusOK, 100*time.Millisecond)
	red.RecordRequest(ctx, "normalize", observability.StatusOK, 50*time.Millisecond)
	red.RecordRequest(ctx, "chain", observability.StatusError, time.Second)

	rm := collectMetrics(t, reader)

	assert.Equal(t, map[string]int64{"normalize": 2, "chain": 1}, counterByOp(t, rm, "rtalign.requests.total"))
	assert.Equal(t, map[string]int64{"chain": 1}, counterByOp(t, rm, "rtalign.errors.total"))

	hist := findMetric(rm, "rtalign.request.duration.seconds")
	require.NotNil(t, hist)

	data, ok := hist.Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	var count uint64
	for _, dp := range data.DataPoints {
		count += dp.Count
	}

	assert.Equal(t, uint64(3), count)
}

func TestREDMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)
	ctx := context.Background()

	first := red.TrackInflight(ctx, "replay")
	second := red.TrackInflight(ctx, "replay")

	assert.Equal(t, map[string]int64{"replay": 2}, counterByOp(t, collectMetrics(t, reader), "rtalign.inflight.requests"))

	first()
	second()

	assert.Equal(t, map[string]int64{"replay": 0}, counterByOp(t, collectMetrics(t, reader), "rtalign.inflight.requests"))
}

func TestNewREDMetrics_NoopMeter(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	red, err := observability.NewREDMetrics(providers.Meter)
	require.NoError(t, err)
	require.NotNil(t, red)

	red.RecordRequest(context.Background(), "normalize", observability.StatusOK, time.Millisecond)
	red.TrackInflight(context.Background(), "normalize")()
}

func TestREDMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var red *observability.REDMetrics

	red.RecordRequest(context.Background(), "normalize", observability.StatusOK, time.Millisecond)
	red.TrackInflight(context.Background(), "normalize")()
}

func TestReadMetrics_RecordRead(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	rm, err := observability.NewReadMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	rm.RecordRead(ctx, observability.ReadStats{
		Samples:      4000,
		Backpressure: 2,
		Discarded:    150,
		Seeds:        30,
		Created:      5,
		Merged:       24,
		Joined:       1,
		BestLength:   120,
		Aligned:      true,
		Duration:     3 * time.Millisecond,
	})
	rm.RecordRead(ctx, observability.ReadStats{Samples: 1000})

	collected := collectMetrics(t, reader)

	samples := findMetric(collected, "rtalign.samples.total")
	require.NotNil(t, samples)

	sum, ok := samples.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(5000), sum.DataPoints[0].Value)

	reads := findMetric(collected, "rtalign.reads.total")
	require.NotNil(t, reads)

	readSum, ok := reads.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, readSum.DataPoints, 2)

	chains := findMetric(collected, "rtalign.chains.total")
	require.NotNil(t, chains)

	chainSum, ok := chains.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, chainSum.DataPoints, 3)

	for _, name := range []string{
		"rtalign.backpressure.total",
		"rtalign.samples.discarded.total",
		"rtalign.seeds.total",
		"rtalign.read.duration.seconds",
		"rtalign.read.best_length",
	} {
		assert.NotNil(t, findMetric(collected, name), name)
	}
}

func TestReadMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var rm *observability.ReadMetrics

	rm.RecordRead(context.Background(), observability.ReadStats{Samples: 1})
}
