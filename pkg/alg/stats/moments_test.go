package stats_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/Sumatoshi-tech/rtalign/pkg/alg/stats"
)

const momentsTolerance = 1e-9

// oracle returns the population mean and stddev computed by gonum.
func oracle(values []float64) (mean, stddev float64) {
	mean = stat.Mean(values, nil)
	variance := stat.MomentAbout(2, values, mean, nil)

	return mean, math.Sqrt(variance)
}

func TestMoments_Empty(t *testing.T) {
	t.Parallel()

	var m stats.Moments

	assert.Zero(t, m.Count())
	assert.Zero(t, m.Mean())
	assert.Zero(t, m.Variance())
	assert.Zero(t, m.StdDev())
}

func TestMoments_AddMatchesOracle(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	values := make([]float64, 500)

	var m stats.Moments

	for i := range values {
		values[i] = rng.NormFloat64()*3 + 10
		m.Add(values[i])
	}

	wantMean, wantStd := oracle(values)

	require.Equal(t, len(values), m.Count())
	assert.InDelta(t, wantMean, m.Mean(), momentsTolerance)
	assert.InDelta(t, wantStd, m.StdDev(), 1e-6)
}

func TestMoments_ReplaceTracksSlidingWindow(t *testing.T) {
	t.Parallel()

	const window = 32

	rng := rand.New(rand.NewPCG(7, 11))
	stream := make([]float64, 400)

	for i := range stream {
		stream[i] = rng.Float64()*100 - 50
	}

	var m stats.Moments

	for i, x := range stream {
		if i < window {
			m.Add(x)

			continue
		}

		m.Replace(stream[i-window], x)

		wantMean, wantStd := oracle(stream[i-window+1 : i+1])
		assert.InDelta(t, wantMean, m.Mean(), 1e-6)
		assert.InDelta(t, wantStd, m.StdDev(), 1e-6)
	}

	assert.Equal(t, window, m.Count())
}

func TestMoments_ReplaceOnEmptyAdds(t *testing.T) {
	t.Parallel()

	var m stats.Moments

	m.Replace(0, 4)

	assert.Equal(t, 1, m.Count())
	assert.InDelta(t, 4.0, m.Mean(), momentsTolerance)
}

func TestMoments_ConstantWindowHasZeroVariance(t *testing.T) {
	t.Parallel()

	var m stats.Moments

	for range 8 {
		m.Add(3)
	}

	for range 20 {
		m.Replace(3, 3)
	}

	assert.InDelta(t, 3.0, m.Mean(), momentsTolerance)
	assert.Zero(t, m.VarSum())
}

func TestMoments_Reset(t *testing.T) {
	t.Parallel()

	m := stats.FromSlice([]float64{1, 2, 3})
	m.Reset()

	assert.Zero(t, m.Count())
	assert.Zero(t, m.VarSum())
}

func TestFromSlice(t *testing.T) {
	t.Parallel()

	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	m := stats.FromSlice(values)

	assert.Equal(t, 8, m.Count())
	assert.InDelta(t, 5.0, m.Mean(), momentsTolerance)
	assert.InDelta(t, 32.0, m.VarSum(), momentsTolerance)
	assert.InDelta(t, 2.0, m.StdDev(), momentsTolerance)
}

func BenchmarkMoments_Replace(b *testing.B) {
	var m stats.Moments

	for i := range 64 {
		m.Add(float64(i))
	}

	b.ReportAllocs()

	for i := 0; b.Loop(); i++ {
		m.Replace(float64(i%64), float64(i%97))
	}
}
