package observability

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// instruments creates metric instruments and joins every creation error, so
// a metric set is checked once after all instruments are declared.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func newInstruments(mt metric.Meter) *instruments {
	return &instruments{meter: mt}
}

func create[T any](in *instruments, name string, fn func() (T, error)) T {
	inst, err := fn()
	if err != nil {
		in.errs = append(in.errs, fmt.Errorf("instrument %s: %w", name, err))
	}

	return inst
}

func (in *instruments) counter(name, desc, unit string) metric.Int64Counter {
	return create(in, name, func() (metric.Int64Counter, error) {
		return in.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	})
}

func (in *instruments) upDownCounter(name, desc, unit string) metric.Int64UpDownCounter {
	return create(in, name, func() (metric.Int64UpDownCounter, error) {
		return in.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	})
}

// histogram uses the SDK default buckets when bounds is empty.
func (in *instruments) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	return create(in, name, func() (metric.Float64Histogram, error) {
		return in.meter.Float64Histogram(name, opts...)
	})
}

func (in *instruments) err() error {
	return errors.Join(in.errs...)
}
