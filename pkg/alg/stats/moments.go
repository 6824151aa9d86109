package stats

import "math"

// Moments tracks the running mean and sum of squared deviations of a sample stream.
//
// Add grows the population with Welford's update. Replace swaps one member of a
// fixed-size window for a new value without changing the count, which keeps
// the moments of a sliding window exact up to rounding.
type Moments struct {
	n      int
	mean   float64
	varSum float64
}

// FromSlice computes the moments of values with a two-pass sum.
func FromSlice(values []float64) Moments {
	m := Moments{n: len(values)}
	if m.n == 0 {
		return m
	}

	m.mean = Mean(values)

	for _, v := range values {
		d := v - m.mean
		m.varSum += d * d
	}

	return m
}

// Add folds x into the population.
func (m *Moments) Add(x float64) {
	m.n++

	delta := x - m.mean
	m.mean += delta / float64(m.n)
	m.varSum += delta * (x - m.mean)
}

// Replace substitutes x for old in a window of the current size.
// The population must be non-empty.
func (m *Moments) Replace(old, x float64) {
	if m.n == 0 {
		m.Add(x)

		return
	}

	prev := m.mean
	m.mean += (x - old) / float64(m.n)
	m.varSum += (x + old - prev - m.mean) * (x - old)

	if m.varSum < 0 {
		m.varSum = 0
	}
}

// Reset empties the population.
func (m *Moments) Reset() {
	*m = Moments{}
}

// Count returns the population size.
func (m *Moments) Count() int { return m.n }

// Mean returns the population mean, or 0 when empty.
func (m *Moments) Mean() float64 { return m.mean }

// VarSum returns the sum of squared deviations from the mean.
func (m *Moments) VarSum() float64 { return m.varSum }

// Variance returns the population variance, or 0 when empty.
func (m *Moments) Variance() float64 {
	if m.n == 0 {
		return 0
	}

	return m.varSum / float64(m.n)
}

// StdDev returns the population standard deviation, or 0 when empty.
func (m *Moments) StdDev() float64 {
	return math.Sqrt(m.Variance())
}
