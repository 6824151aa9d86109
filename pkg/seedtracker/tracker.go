// Package seedtracker assembles seed hits into maximal colinear chains.
//
// Chains live in an arena and are indexed three ways by red-black trees that
// share one node allocator: by reference end, by reference start and by score.
// A chain whose bounds change is removed from every index, updated and
// reinserted, so no index ever holds a stale key.
package seedtracker

import (
	"cmp"
	"math"

	"github.com/Sumatoshi-tech/rtalign/pkg/rbtree"
	"github.com/Sumatoshi-tech/rtalign/pkg/safeconv"
)

// indexKey orders chains inside one index. The id makes every key unique.
type indexKey struct {
	strand Strand
	pos    int
	evt    int
	id     uint64
}

func compareKeys(a, b indexKey) int {
	if c := cmp.Compare(a.strand, b.strand); c != 0 {
		return c
	}

	if c := cmp.Compare(a.pos, b.pos); c != 0 {
		return c
	}

	if c := cmp.Compare(a.evt, b.evt); c != 0 {
		return c
	}

	return cmp.Compare(a.id, b.id)
}

func endKey(c *Chain) indexKey {
	return indexKey{strand: c.Strand, pos: c.RefEnd, evt: c.EvtEnd, id: c.ID}
}

func startKey(c *Chain) indexKey {
	return indexKey{strand: c.Strand, pos: c.RefStart, evt: c.EvtStart, id: c.ID}
}

// scoreKey sorts by descending length, then reference start, then age, across strands.
func scoreKey(c *Chain) indexKey {
	return indexKey{pos: -c.Length, evt: c.RefStart, id: c.ID}
}

// Tracker owns the chain set. It is not safe for concurrent use.
type Tracker struct {
	policy MergePolicy

	chains []Chain
	free   []uint32

	nodes   *rbtree.Allocator[indexKey]
	byEnd   *rbtree.RBTree[indexKey]
	byStart *rbtree.RBTree[indexKey]
	byScore *rbtree.RBTree[indexKey]

	// widest is an upper bound on any indexed chain's reference width.
	widest int

	nextID uint64
	stats  Stats
}

// NewTracker creates an empty tracker that merges under policy.
func NewTracker(policy MergePolicy) (*Tracker, error) {
	err := policy.Validate()
	if err != nil {
		return nil, err
	}

	nodes := rbtree.NewAllocator[indexKey]()

	return &Tracker{
		policy:  policy,
		nodes:   nodes,
		byEnd:   rbtree.NewRBTree(nodes, compareKeys),
		byStart: rbtree.NewRBTree(nodes, compareKeys),
		byScore: rbtree.NewRBTree(nodes, compareKeys),
		nextID:  1,
	}, nil
}

// Policy returns the merge policy.
func (t *Tracker) Policy() MergePolicy {
	return t.policy
}

// Len returns the number of chains.
func (t *Tracker) Len() int {
	return t.byScore.Len()
}

// Stats returns the activity counters.
func (t *Tracker) Stats() Stats {
	return t.stats
}

// Reset discards every chain and counter. The policy is kept.
func (t *Tracker) Reset() {
	t.byEnd.Erase()
	t.byStart.Erase()
	t.byScore.Erase()

	t.chains = t.chains[:0]
	t.free = t.free[:0]
	t.widest = 0
	t.nextID = 1
	t.stats = Stats{}
}

// AddSeed absorbs hit into the best colinear chain, or starts a new chain when
// none qualifies. An extended chain then joins any neighbour it has become
// mergeable with, so no two chains are ever mergeable. It returns the chain now
// holding the hit.
func (t *Tracker) AddSeed(hit Hit) Chain {
	t.stats.Seeds++

	slot, ok := t.bestCandidate(hit, math.MaxUint32)
	if !ok {
		t.stats.Created++

		return t.chains[t.create(hit)]
	}

	t.stats.Merged++
	t.absorb(slot, hit, 1)

	for {
		span := t.chains[slot].Span()

		other, found := t.bestCandidate(span, slot)
		if !found {
			break
		}

		absorbed := t.chains[other]
		t.remove(other)
		t.absorb(slot, absorbed.Span(), absorbed.Seeds)
		t.stats.Joined++
	}

	return t.chains[slot]
}

// AddSeeds applies AddSeed to each hit in order.
func (t *Tracker) AddSeeds(hits []Hit) {
	for _, hit := range hits {
		t.AddSeed(hit)
	}
}

// Alignments returns copies of every chain with Length >= minLength, longest first.
// Ties are broken by lower reference start and then by creation order.
func (t *Tracker) Alignments(minLength int) []Chain {
	out := make([]Chain, 0, t.byScore.Len())

	for item := range t.byScore.All() {
		chain := t.chains[item.Value]
		if chain.Length < minLength {
			break
		}

		out = append(out, chain)
	}

	return out
}

// Best returns the highest scoring chain.
func (t *Tracker) Best() (Chain, bool) {
	it := t.byScore.Min()
	if !it.Valid() {
		return Chain{}, false
	}

	return t.chains[it.Item().Value], true
}

// Chains returns every chain ordered by strand and reference start.
func (t *Tracker) Chains() []Chain {
	out := make([]Chain, 0, t.byStart.Len())

	for item := range t.byStart.All() {
		out = append(out, t.chains[item.Value])
	}

	return out
}

// bestCandidate finds the chain hit merges into, skipping slot exclude.
// Chains ending just before hit are found through byEnd, chains starting just
// after it through byStart; both scans are bounded by MaxRefGap. Chains that
// cover hit, or that hit covers, are candidates with a gap of zero.
func (t *Tracker) bestCandidate(hit Hit, exclude uint32) (uint32, bool) {
	var (
		best    uint32
		bestGap int
		found   bool
	)

	consider := func(slot uint32, gap int) {
		if slot == exclude {
			return
		}

		if !found || t.better(slot, gap, best, bestGap) {
			best, bestGap, found = slot, gap, true
		}
	}

	lo := indexKey{strand: hit.Strand, pos: hit.RefStart - t.policy.MaxRefGap, evt: math.MinInt}
	for it := t.byEnd.FindGE(lo); it.Valid(); it = it.Next() {
		key := it.Item().Key
		if key.strand != hit.Strand || key.pos > hit.RefStart {
			break
		}

		slot := it.Item().Value
		if gap, ok := t.policy.Precedes(t.chains[slot].Span(), hit); ok {
			consider(slot, gap)
		}
	}

	lo = indexKey{strand: hit.Strand, pos: hit.RefEnd, evt: math.MinInt}
	for it := t.byStart.FindGE(lo); it.Valid(); it = it.Next() {
		key := it.Item().Key
		if key.strand != hit.Strand || key.pos > hit.RefEnd+t.policy.MaxRefGap {
			break
		}

		slot := it.Item().Value
		if gap, ok := t.policy.Precedes(hit, t.chains[slot].Span()); ok {
			consider(slot, gap)
		}
	}

	// A covering chain starts in [hit.RefEnd-widest, hit.RefStart], a covered
	// one in [hit.RefStart, hit.RefEnd].
	lo = indexKey{strand: hit.Strand, pos: min(hit.RefStart, hit.RefEnd-t.widest), evt: math.MinInt}
	for it := t.byStart.FindGE(lo); it.Valid(); it = it.Next() {
		key := it.Item().Key
		if key.strand != hit.Strand || key.pos > hit.RefEnd {
			break
		}

		slot := it.Item().Value
		span := t.chains[slot].Span()

		if t.policy.Covers(span, hit) || t.policy.Covers(hit, span) {
			consider(slot, 0)
		}
	}

	return best, found
}

// better orders candidates: smaller gap, longer chain, lower reference start, older chain.
func (t *Tracker) better(slot uint32, gap int, best uint32, bestGap int) bool {
	if gap != bestGap {
		return gap < bestGap
	}

	a, b := &t.chains[slot], &t.chains[best]

	if a.Length != b.Length {
		return a.Length > b.Length
	}

	if a.RefStart != b.RefStart {
		return a.RefStart < b.RefStart
	}

	return a.ID < b.ID
}

func (t *Tracker) create(hit Hit) uint32 {
	chain := Chain{
		ID:       t.nextID,
		Strand:   hit.Strand,
		RefStart: hit.RefStart,
		RefEnd:   hit.RefEnd,
		EvtStart: hit.EvtStart,
		EvtEnd:   hit.EvtEnd,
		Length:   hit.Length,
		Seeds:    1,
	}
	t.nextID++

	return t.place(chain)
}

func (t *Tracker) place(chain Chain) uint32 {
	var slot uint32

	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
		t.chains[slot] = chain
	} else {
		slot = safeconv.MustUint32(len(t.chains))
		t.chains = append(t.chains, chain)
	}

	t.index(slot)

	return slot
}

// absorb widens the chain in slot to cover span and adds its score.
func (t *Tracker) absorb(slot uint32, span Hit, seeds int) {
	t.unindex(slot)

	c := &t.chains[slot]
	c.RefStart = min(c.RefStart, span.RefStart)
	c.RefEnd = max(c.RefEnd, span.RefEnd)
	c.EvtStart = min(c.EvtStart, span.EvtStart)
	c.EvtEnd = max(c.EvtEnd, span.EvtEnd)
	c.Length += span.Length
	c.Seeds += seeds

	t.index(slot)
}

func (t *Tracker) remove(slot uint32) {
	t.unindex(slot)
	t.chains[slot] = Chain{}
	t.free = append(t.free, slot)
}

func (t *Tracker) index(slot uint32) {
	c := &t.chains[slot]
	t.widest = max(t.widest, c.RefEnd-c.RefStart)

	t.byEnd.Insert(rbtree.Item[indexKey]{Key: endKey(c), Value: slot})
	t.byStart.Insert(rbtree.Item[indexKey]{Key: startKey(c), Value: slot})
	t.byScore.Insert(rbtree.Item[indexKey]{Key: scoreKey(c), Value: slot})
}

func (t *Tracker) unindex(slot uint32) {
	c := &t.chains[slot]

	t.byEnd.DeleteWithKey(endKey(c))
	t.byStart.DeleteWithKey(startKey(c))
	t.byScore.DeleteWithKey(scoreKey(c))
}
