// Package stats holds the batch and streaming moments used to normalize raw
// signal, and the order statistics reported after a replay.
// Standard deviations are population values (divided by n).
package stats

import (
	"cmp"
	"math"
	"slices"
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
// The sum is compensated so long signals with a large offset keep their
// low-order digits.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum, carry float64

	for _, v := range values {
		y := v - carry
		t := sum + y
		carry = (t - sum) - y
		sum = t
	}

	return sum / float64(len(values))
}

// MeanStdDev returns the mean and population standard deviation of values.
func MeanStdDev(values []float64) (mean, stddev float64) {
	m := FromSlice(values)

	return m.Mean(), m.StdDev()
}

// Quantiles used in run summaries.
const (
	PercentileMedian = 0.5
	PercentileP95    = 0.95
)

// Quantiles returns the p-quantile of values for every p, interpolating
// linearly between order statistics. Each p is clamped to [0, 1]. values is
// not modified; an empty input yields zeros.
func Quantiles(values []float64, ps ...float64) []float64 {
	out := make([]float64, len(ps))
	if len(values) == 0 {
		return out
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	last := float64(len(sorted) - 1)

	for i, p := range ps {
		rank := Clamp(p, 0, 1) * last
		lo, frac := math.Modf(rank)

		out[i] = sorted[int(lo)]
		if frac > 0 {
			out[i] += frac * (sorted[int(lo)+1] - sorted[int(lo)])
		}
	}

	return out
}

// Percentile returns the single p-quantile of values.
func Percentile(values []float64, p float64) float64 {
	return Quantiles(values, p)[0]
}

// Median returns the 0.5-quantile of values.
func Median(values []float64) float64 {
	return Percentile(values, PercentileMedian)
}

// Clamp restricts val to [lo, hi].
func Clamp[T cmp.Ordered](val, lo, hi T) T {
	return max(lo, min(val, hi))
}

// Max returns the largest element, or the zero value for an empty slice.
func Max[T cmp.Ordered](values []T) T {
	if len(values) == 0 {
		var zero T

		return zero
	}

	return slices.Max(values)
}
