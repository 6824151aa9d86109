package readuntil_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/rtalign/pkg/observability"
	"github.com/Sumatoshi-tech/rtalign/pkg/readio"
	"github.com/Sumatoshi-tech/rtalign/pkg/readuntil"
)

const testReads = 24

func feed(records []readio.Record) <-chan readio.Record {
	in := make(chan readio.Record, len(records))
	for _, rec := range records {
		in <- rec
	}

	close(in)

	return in
}

func testRecords() []readio.Record {
	records := make([]readio.Record, testReads)
	for i := range records {
		records[i] = readio.Record{
			ID:      fmt.Sprintf("read-%02d", i),
			Samples: randomSignal(300+10*i, uint64(i)+100),
			Seeds:   exampleSeeds(),
		}
	}

	return records
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPool_ProcessesEveryRead(t *testing.T) {
	t.Parallel()

	records := testRecords()
	records = append(records, readio.Record{ID: "empty"})

	pool, err := readuntil.NewPool(readuntil.DefaultOptions(), readuntil.WithWorkers(4), readuntil.WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, 4, pool.Workers())

	out := make(chan readuntil.Result, len(records))

	require.NoError(t, pool.Run(context.Background(), feed(records), out))

	results := make([]readuntil.Result, 0, len(records))
	for res := range out {
		results = append(results, res)
	}

	require.Len(t, results, len(records))

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	assert.Equal(t, "empty", results[0].ID)
	assert.Contains(t, results[0].Err, readuntil.ErrEmptyRead.Error())

	for i, res := range results[1:] {
		assert.Equal(t, records[i].ID, res.ID)
		assert.Equal(t, len(records[i].Samples), res.Samples)
		assert.Empty(t, res.Err)
		require.Len(t, res.Alignments, 2)
		assert.Equal(t, 20, res.BestLength())
	}
}

func TestPool_DefaultWorkers(t *testing.T) {
	t.Parallel()

	pool, err := readuntil.NewPool(readuntil.DefaultOptions())
	require.NoError(t, err)
	assert.Positive(t, pool.Workers())

	_, err = readuntil.NewPool(readuntil.Options{})
	require.ErrorIs(t, err, readuntil.ErrInvalidOptions)
}

func TestPool_CanceledContext(t *testing.T) {
	t.Parallel()

	pool, err := readuntil.NewPool(readuntil.DefaultOptions(), readuntil.WithWorkers(2), readuntil.WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan readio.Record)
	out := make(chan readuntil.Result)

	err = pool.Run(ctx, in, out)
	require.ErrorIs(t, err, context.Canceled)

	_, open := <-out
	assert.False(t, open)
}

func TestPool_RecordsSpansAndMetrics(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	reads, err := observability.NewReadMetrics(mp.Meter("test"))
	require.NoError(t, err)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	tracer := observability.NewFilteringTracerProvider(tp).Tracer("test")

	pool, err := readuntil.NewPool(readuntil.DefaultOptions(),
		readuntil.WithWorkers(3),
		readuntil.WithLogger(quietLogger()),
		readuntil.WithTracer(tracer),
		readuntil.WithMetrics(reads, red),
	)
	require.NoError(t, err)

	records := testRecords()
	out := make(chan readuntil.Result, len(records))

	require.NoError(t, pool.Run(context.Background(), feed(records), out))

	readSpans := 0

	for _, span := range exporter.GetSpans() {
		if span.Name == "rtalign.read" {
			readSpans++
		}
	}

	assert.Equal(t, len(records), readSpans)

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}

	assert.True(t, names["rtalign.reads.total"])
	assert.True(t, names["rtalign.samples.total"])
	assert.True(t, names["rtalign.requests.total"])
}

func TestPool_FailedReadRecordsElapsedTime(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	pool, err := readuntil.NewPool(readuntil.DefaultOptions(),
		readuntil.WithWorkers(1),
		readuntil.WithLogger(quietLogger()),
		readuntil.WithMetrics(nil, red),
	)
	require.NoError(t, err)

	out := make(chan readuntil.Result, 1)
	require.NoError(t, pool.Run(context.Background(), feed([]readio.Record{{ID: "empty"}}), out))

	res := <-out
	require.NotEmpty(t, res.Err)
	assert.Positive(t, res.Duration)

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	var latency *metricdata.Histogram[float64]

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if h, ok := m.Data.(metricdata.Histogram[float64]); ok && m.Name == "rtalign.request.duration.seconds" {
				latency = &h
			}
		}
	}

	require.NotNil(t, latency)
	require.Len(t, latency.DataPoints, 1)
	assert.Equal(t, uint64(1), latency.DataPoints[0].Count)
	assert.Positive(t, latency.DataPoints[0].Sum)
}
