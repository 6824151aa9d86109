package seedtracker_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

func newTracker(t *testing.T, policy seedtracker.MergePolicy) *seedtracker.Tracker {
	t.Helper()

	tracker, err := seedtracker.NewTracker(policy)
	require.NoError(t, err)

	return tracker
}

func smallGapPolicy() seedtracker.MergePolicy {
	return seedtracker.MergePolicy{MaxRefGap: 2, MaxEvtGap: 2, MaxDiagonalDrift: 2}
}

func hit(refStart, refEnd, evtStart, evtEnd, length int) seedtracker.Hit {
	return seedtracker.Hit{RefStart: refStart, RefEnd: refEnd, EvtStart: evtStart, EvtEnd: evtEnd, Length: length}
}

// requireMaximal checks that no two chains could still merge.
func requireMaximal(t *testing.T, tracker *seedtracker.Tracker) {
	t.Helper()

	chains := tracker.Chains()
	policy := tracker.Policy()

	for i := range chains {
		for j := i + 1; j < len(chains); j++ {
			_, ok := policy.Mergeable(chains[i].Span(), chains[j].Span())
			require.False(t, ok, "%s and %s are still mergeable", chains[i], chains[j])
		}
	}
}

func TestNewTracker_InvalidPolicy(t *testing.T) {
	t.Parallel()

	tracker, err := seedtracker.NewTracker(seedtracker.MergePolicy{MaxRefGap: -1})

	require.ErrorIs(t, err, seedtracker.ErrInvalidPolicy)
	assert.Nil(t, tracker)
}

func TestAddSeeds_TwoChains(t *testing.T) {
	t.Parallel()

	tracker := newTracker(t, smallGapPolicy())
	tracker.AddSeeds([]seedtracker.Hit{
		hit(100, 110, 5, 6, 10),
		hit(111, 121, 6, 7, 10),
		hit(500, 510, 50, 51, 10),
	})

	require.Equal(t, 2, tracker.Len())

	all := tracker.Alignments(0)
	require.Len(t, all, 2)

	assert.Equal(t, 100, all[0].RefStart)
	assert.Equal(t, 121, all[0].RefEnd)
	assert.Equal(t, 5, all[0].EvtStart)
	assert.Equal(t, 7, all[0].EvtEnd)
	assert.Equal(t, 20, all[0].Length)
	assert.Equal(t, 2, all[0].Seeds)
	assert.Equal(t, seedtracker.Extended, all[0].State())

	assert.Equal(t, 500, all[1].RefStart)
	assert.Equal(t, 510, all[1].RefEnd)
	assert.Equal(t, 10, all[1].Length)
	assert.Equal(t, seedtracker.Open, all[1].State())

	above15 := tracker.Alignments(15)
	require.Len(t, above15, 1)
	assert.Equal(t, all[0], above15[0])

	assert.Empty(t, tracker.Alignments(25))

	stats := tracker.Stats()
	assert.Equal(t, seedtracker.Stats{Seeds: 3, Created: 2, Merged: 1, Joined: 0}, stats)
}

func TestAddSeed_OutOfOrderColinearMergesAndJoins(t *testing.T) {
	t.Parallel()

	tracker := newTracker(t, smallGapPolicy())

	tracker.AddSeed(hit(122, 132, 7, 8, 10))
	tracker.AddSeed(hit(100, 110, 5, 6, 10))
	require.Equal(t, 2, tracker.Len())

	chain := tracker.AddSeed(hit(111, 121, 6, 7, 10))

	require.Equal(t, 1, tracker.Len())
	assert.Equal(t, 100, chain.RefStart)
	assert.Equal(t, 132, chain.RefEnd)
	assert.Equal(t, 30, chain.Length)
	assert.Equal(t, 3, chain.Seeds)
	assert.Equal(t, 1, tracker.Stats().Joined)
}

func TestAddSeed_OrderIndependence(t *testing.T) {
	t.Parallel()

	const seeds = 40

	hits := make([]seedtracker.Hit, seeds)
	for i := range hits {
		hits[i] = hit(10*i, 10*i+9, 3*i, 3*i+2, 9)
	}

	rng := rand.New(rand.NewPCG(5, 8))

	for round := range 25 {
		shuffled := slices.Clone(hits)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		tracker := newTracker(t, seedtracker.DefaultPolicy())
		tracker.AddSeeds(shuffled)

		require.Equal(t, 1, tracker.Len(), "round %d", round)

		best, ok := tracker.Best()
		require.True(t, ok)
		assert.Equal(t, 0, best.RefStart)
		assert.Equal(t, 10*(seeds-1)+9, best.RefEnd)
		assert.Equal(t, 9*seeds, best.Length)
		assert.Equal(t, seeds, best.Seeds)
	}
}

func TestAddSeed_NarrowSeedsAnyOrder(t *testing.T) {
	t.Parallel()

	a := hit(100, 101, 10, 11, 1)
	b := hit(101, 102, 11, 12, 1)
	c := hit(102, 103, 12, 13, 1)

	orders := map[string][]seedtracker.Hit{
		"abc": {a, b, c},
		"acb": {a, c, b},
		"bac": {b, a, c},
		"bca": {b, c, a},
		"cab": {c, a, b},
		"cba": {c, b, a},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tracker := newTracker(t, seedtracker.DefaultPolicy())
			tracker.AddSeeds(order)

			require.Equal(t, 1, tracker.Len())

			best, ok := tracker.Best()
			require.True(t, ok)
			assert.Equal(t, 100, best.RefStart)
			assert.Equal(t, 103, best.RefEnd)
			assert.Equal(t, 10, best.EvtStart)
			assert.Equal(t, 13, best.EvtEnd)
			assert.Equal(t, 3, best.Length)
			assert.Equal(t, 3, best.Seeds)
		})
	}
}

func TestAddSeed_NarrowSeedsShuffled(t *testing.T) {
	t.Parallel()

	const seeds = 30

	hits := make([]seedtracker.Hit, seeds)
	for i := range hits {
		hits[i] = hit(100+i, 101+i, 10+i, 11+i, 1)
	}

	rng := rand.New(rand.NewPCG(3, 21))

	for round := range 25 {
		shuffled := slices.Clone(hits)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		tracker := newTracker(t, seedtracker.DefaultPolicy())
		tracker.AddSeeds(shuffled)

		require.Equal(t, 1, tracker.Len(), "round %d", round)

		best, ok := tracker.Best()
		require.True(t, ok)
		assert.Equal(t, 100, best.RefStart)
		assert.Equal(t, 100+seeds, best.RefEnd)
		assert.Equal(t, seeds, best.Length)
		assert.Equal(t, seeds, best.Seeds)
	}
}

func TestAddSeed_CoveredHitJoinsChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		inner  seedtracker.Hit
		merged bool
	}{
		{name: "on_diagonal", inner: hit(5, 8, 5, 8, 3), merged: true},
		{name: "within_drift", inner: hit(8, 10, 4, 6, 2), merged: true},
		{name: "off_diagonal", inner: hit(15, 18, 5, 8, 3), merged: false},
		{name: "sticks_out", inner: hit(15, 22, 15, 22, 7), merged: false},
		{name: "duplicate", inner: hit(0, 20, 0, 20, 20), merged: true},
	}

	policy := seedtracker.MergePolicy{MaxRefGap: 4, MaxEvtGap: 4, MaxDiagonalDrift: 4}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tracker := newTracker(t, policy)
			outer := tracker.AddSeed(hit(0, 20, 0, 20, 20))
			chain := tracker.AddSeed(tt.inner)

			if !tt.merged {
				assert.Equal(t, 2, tracker.Len())

				return
			}

			require.Equal(t, 1, tracker.Len())
			assert.Equal(t, outer.ID, chain.ID)
			assert.Equal(t, 20+tt.inner.Length, chain.Length)
			assert.Equal(t, 2, chain.Seeds)
		})
	}
}

func TestAddSeed_WideHitSwallowsChains(t *testing.T) {
	t.Parallel()

	tracker := newTracker(t, seedtracker.DefaultPolicy())
	tracker.AddSeed(hit(10, 12, 10, 12, 2))
	tracker.AddSeed(hit(40, 42, 40, 42, 2))
	require.Equal(t, 2, tracker.Len())

	chain := tracker.AddSeed(hit(0, 60, 0, 60, 60))

	require.Equal(t, 1, tracker.Len())
	assert.Equal(t, 0, chain.RefStart)
	assert.Equal(t, 60, chain.RefEnd)
	assert.Equal(t, 64, chain.Length)
	assert.Equal(t, 3, chain.Seeds)
	assert.Equal(t, 1, tracker.Stats().Joined)
}

func TestAddSeed_HitBeforeChainExtendsStart(t *testing.T) {
	t.Parallel()

	tracker := newTracker(t, seedtracker.DefaultPolicy())
	first := tracker.AddSeed(hit(50, 60, 20, 30, 10))
	chain := tracker.AddSeed(hit(38, 48, 8, 18, 10))

	assert.Equal(t, first.ID, chain.ID)
	assert.Equal(t, 38, chain.RefStart)
	assert.Equal(t, 60, chain.RefEnd)
	assert.Equal(t, 8, chain.EvtStart)
	assert.Equal(t, 30, chain.EvtEnd)
}

func TestAddSeed_CandidateSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		right      seedtracker.Hit
		wantLength int
		wantID     uint64
	}{
		{
			name:       "smaller_gap_beats_longer_chain",
			right:      hit(22, 30, 22, 30, 50),
			wantLength: 5 + 9 + 50,
			wantID:     1,
		},
		{
			name:       "equal_gap_prefers_longer_chain",
			right:      hit(21, 30, 21, 30, 50),
			wantLength: 5 + 9 + 50,
			wantID:     2,
		},
		{
			name:       "equal_gap_and_length_prefers_lower_start",
			right:      hit(21, 30, 21, 30, 5),
			wantLength: 5 + 9 + 5,
			wantID:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tracker := newTracker(t, seedtracker.DefaultPolicy())
			tracker.AddSeed(hit(0, 10, 0, 10, 5))
			tracker.AddSeed(tt.right)

			chain := tracker.AddSeed(hit(11, 20, 11, 20, 9))

			assert.Equal(t, tt.wantID, chain.ID)
			assert.Equal(t, tt.wantLength, chain.Length)
			assert.Equal(t, 1, tracker.Len(), "the other neighbour is joined")
		})
	}
}

func TestAddSeed_RespectsTolerances(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		second seedtracker.Hit
		merged bool
	}{
		{name: "adjacent", second: hit(10, 20, 10, 20, 10), merged: true},
		{name: "within_gap", second: hit(14, 20, 14, 20, 6), merged: true},
		{name: "ref_gap_too_large", second: hit(15, 20, 12, 20, 5), merged: false},
		{name: "evt_gap_too_large", second: hit(12, 20, 15, 20, 5), merged: false},
		{name: "overlap_in_reference", second: hit(9, 20, 10, 20, 10), merged: false},
		{name: "overlap_in_events", second: hit(10, 20, 9, 20, 10), merged: false},
		{name: "off_diagonal", second: hit(14, 20, 10, 20, 6), merged: false},
		{name: "other_strand", second: seedtracker.Hit{Strand: seedtracker.Reverse, RefStart: 10, RefEnd: 20, EvtStart: 10, EvtEnd: 20, Length: 10}, merged: false},
	}

	policy := seedtracker.MergePolicy{MaxRefGap: 4, MaxEvtGap: 4, MaxDiagonalDrift: 3}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tracker := newTracker(t, policy)
			tracker.AddSeed(hit(0, 10, 0, 10, 10))
			tracker.AddSeed(tt.second)

			if tt.merged {
				assert.Equal(t, 1, tracker.Len())
			} else {
				assert.Equal(t, 2, tracker.Len())
			}
		})
	}
}

func TestAddSeed_RandomStreamStaysMaximal(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(11, 13))
	tracker := newTracker(t, seedtracker.DefaultPolicy())

	var (
		totalLength int
		hits        int
	)

	for range 600 {
		refStart := rng.IntN(2000)
		evtStart := refStart/3 + rng.IntN(6)
		length := 1 + rng.IntN(12)
		strand := seedtracker.Strand(rng.IntN(2))

		tracker.AddSeed(seedtracker.Hit{
			Strand:   strand,
			RefStart: refStart,
			RefEnd:   refStart + length,
			EvtStart: evtStart,
			EvtEnd:   evtStart + 1 + rng.IntN(3),
			Length:   length,
		})

		totalLength += length
		hits++
	}

	requireMaximal(t, tracker)

	alignments := tracker.Alignments(0)
	require.Len(t, alignments, tracker.Len())

	var sumLength, sumSeeds int

	for i, chain := range alignments {
		sumLength += chain.Length
		sumSeeds += chain.Seeds

		if i > 0 {
			require.GreaterOrEqual(t, alignments[i-1].Length, chain.Length)
		}
	}

	assert.Equal(t, totalLength, sumLength)
	assert.Equal(t, hits, sumSeeds)

	stats := tracker.Stats()
	assert.Equal(t, hits, stats.Seeds)
	assert.Equal(t, stats.Seeds, stats.Created+stats.Merged)
	assert.Equal(t, tracker.Len(), stats.Created-stats.Joined)
}

func TestAlignments_ReturnsCopies(t *testing.T) {
	t.Parallel()

	tracker := newTracker(t, seedtracker.DefaultPolicy())
	tracker.AddSeed(hit(0, 10, 0, 10, 10))

	got := tracker.Alignments(0)
	got[0].Length = 999

	best, ok := tracker.Best()
	require.True(t, ok)
	assert.Equal(t, 10, best.Length)
}

func TestAlignments_TieOrder(t *testing.T) {
	t.Parallel()

	tracker := newTracker(t, seedtracker.DefaultPolicy())
	tracker.AddSeed(hit(300, 310, 300, 310, 10))
	tracker.AddSeed(hit(100, 110, 100, 110, 10))
	tracker.AddSeed(hit(200, 230, 200, 230, 30))

	var starts []int
	for _, chain := range tracker.Alignments(0) {
		starts = append(starts, chain.RefStart)
	}

	assert.Equal(t, []int{200, 100, 300}, starts)
}

func TestBestAndReset(t *testing.T) {
	t.Parallel()

	tracker := newTracker(t, seedtracker.DefaultPolicy())

	_, ok := tracker.Best()
	assert.False(t, ok)

	tracker.AddSeed(hit(0, 10, 0, 10, 10))
	tracker.AddSeed(hit(100, 130, 100, 130, 30))

	best, ok := tracker.Best()
	require.True(t, ok)
	assert.Equal(t, 30, best.Length)

	tracker.Reset()

	assert.Zero(t, tracker.Len())
	assert.Empty(t, tracker.Alignments(0))
	assert.Equal(t, seedtracker.Stats{}, tracker.Stats())

	chain := tracker.AddSeed(hit(5, 6, 5, 6, 1))
	assert.Equal(t, uint64(1), chain.ID, "ids restart after reset")
}

func TestChains_ReferenceOrder(t *testing.T) {
	t.Parallel()

	tracker := newTracker(t, seedtracker.DefaultPolicy())
	tracker.AddSeed(seedtracker.Hit{Strand: seedtracker.Reverse, RefStart: 5, RefEnd: 9, EvtStart: 0, EvtEnd: 1, Length: 4})
	tracker.AddSeed(hit(50, 60, 0, 1, 10))
	tracker.AddSeed(hit(10, 20, 30, 31, 10))

	chains := tracker.Chains()
	require.Len(t, chains, 3)
	assert.Equal(t, 10, chains[0].RefStart)
	assert.Equal(t, 50, chains[1].RefStart)
	assert.Equal(t, seedtracker.Reverse, chains[2].Strand)
}
