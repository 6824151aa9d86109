// Package normalizer rescales a stream of raw signal samples to a target mean and
// standard deviation using running statistics over a bounded circular buffer.
//
// Samples enter either as a whole batch (LoadBatch) or one at a time (Push).
// Statistics always describe the samples resident in the buffer, which includes
// samples already popped until a newer push overwrites their slot. Reads (Pop, At)
// apply the linear map derived from the statistics current at read time.
package normalizer

import (
	"errors"
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/rtalign/pkg/alg/stats"
)

// DefaultCapacity is the buffer size used when none is configured.
const DefaultCapacity = 6000

// Default output distribution.
const (
	DefaultTargetMean  = 0.0
	DefaultTargetStdev = 1.0
)

// Sentinel errors.
var (
	// ErrEmpty is returned when a read is attempted with no unread samples.
	ErrEmpty = errors.New("normalizer: no unread samples")
	// ErrNoVariance is returned when the scale is undefined: no samples or zero variance.
	ErrNoVariance = errors.New("normalizer: resident samples have no variance")
	// ErrIndexOutOfRange is returned by At for an index outside the resident samples.
	ErrIndexOutOfRange = errors.New("normalizer: index out of range")
	// ErrInvalidCapacity is returned for a non-positive buffer size.
	ErrInvalidCapacity = errors.New("normalizer: capacity must be positive")
)

// Normalizer owns a circular sample buffer and its running moments.
// It is not safe for concurrent use.
type Normalizer struct {
	buf []float64
	rd  int
	wr  int

	// empty and full disambiguate rd == wr.
	empty bool
	full  bool

	moments stats.Moments

	targetMean  float64
	targetStdev float64
}

// New creates a normalizer with the given buffer capacity and the default target distribution.
func New(capacity int) (*Normalizer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	return &Normalizer{
		buf:         make([]float64, capacity),
		empty:       true,
		targetMean:  DefaultTargetMean,
		targetStdev: DefaultTargetStdev,
	}, nil
}

// SetTarget sets the output distribution. It only affects the map applied at read time.
func (n *Normalizer) SetTarget(mean, stdev float64) {
	n.targetMean = mean
	n.targetStdev = stdev
}

// Target returns the configured output mean and standard deviation.
func (n *Normalizer) Target() (mean, stdev float64) {
	return n.targetMean, n.targetStdev
}

// LoadBatch replaces the buffer with samples and computes their exact moments.
// The buffer is resized to len(samples), marked full, and every sample is unread.
func (n *Normalizer) LoadBatch(samples []float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("load batch: %w", ErrEmpty)
	}

	if cap(n.buf) >= len(samples) {
		n.buf = n.buf[:len(samples)]
	} else {
		n.buf = make([]float64, len(samples))
	}

	copy(n.buf, samples)

	n.moments = stats.FromSlice(n.buf)
	n.rd, n.wr = 0, 0
	n.empty, n.full = false, true

	return nil
}

// Push appends sample at the write cursor. It returns false without changing
// any state when every slot holds an unread sample; the caller must Pop or
// DiscardUnread first.
func (n *Normalizer) Push(sample float64) bool {
	if n.full {
		return false
	}

	if n.moments.Count() < len(n.buf) {
		n.moments.Add(sample)
	} else {
		n.moments.Replace(n.buf[n.wr], sample)
	}

	n.buf[n.wr] = sample
	n.wr = n.advance(n.wr)
	n.empty = false
	n.full = n.wr == n.rd

	return true
}

// Pop returns the normalized value at the read cursor and advances it.
// Nothing is consumed when an error is returned.
func (n *Normalizer) Pop() (float64, error) {
	if n.empty {
		return 0, ErrEmpty
	}

	scale, shift, err := n.transform()
	if err != nil {
		return 0, err
	}

	value := scale*n.buf[n.rd] + shift

	n.rd = n.advance(n.rd)
	n.full = false
	n.empty = n.rd == n.wr

	return value, nil
}

// PopBatch drains up to len(dst) normalized values into dst and returns how many
// were written. Running out of unread samples is not an error.
func (n *Normalizer) PopBatch(dst []float64) (int, error) {
	var count int

	for count < len(dst) && !n.empty {
		value, err := n.Pop()
		if err != nil {
			return count, err
		}

		dst[count] = value
		count++
	}

	return count, nil
}

// At returns the normalized value of the i-th oldest resident sample, read or not.
func (n *Normalizer) At(i int) (float64, error) {
	count := n.moments.Count()
	if i < 0 || i >= count {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, count)
	}

	scale, shift, err := n.transform()
	if err != nil {
		return 0, err
	}

	oldest := n.wr - count
	if oldest < 0 {
		oldest += len(n.buf)
	}

	return scale*n.buf[(oldest+i)%len(n.buf)] + shift, nil
}

// UnreadCount returns the circular distance from the read cursor to the write cursor.
func (n *Normalizer) UnreadCount() int {
	switch {
	case n.empty:
		return 0
	case n.rd < n.wr:
		return n.wr - n.rd
	default:
		return len(n.buf) - n.rd + n.wr
	}
}

// DiscardUnread keeps only the keep most recently pushed unread samples and skips
// the rest. It returns the number skipped and true, or (0, false) when keep is
// not smaller than UnreadCount and there is nothing to discard.
func (n *Normalizer) DiscardUnread(keep int) (int, bool) {
	keep = max(keep, 0)

	unread := n.UnreadCount()
	if keep >= unread {
		return 0, false
	}

	n.rd = n.wr - keep
	if n.rd < 0 {
		n.rd += len(n.buf)
	}

	n.full = false
	n.empty = keep == 0

	return unread - keep, true
}

// Reset returns the normalizer to the empty state. The buffer is reallocated only
// when capacity is positive and differs from the current one. The target is kept.
func (n *Normalizer) Reset(capacity int) {
	if capacity > 0 && capacity != len(n.buf) {
		n.buf = make([]float64, capacity)
	}

	n.moments.Reset()
	n.rd, n.wr = 0, 0
	n.empty, n.full = true, false
}

// Scale returns the multiplicative factor of the current linear map.
func (n *Normalizer) Scale() (float64, error) {
	scale, _, err := n.transform()

	return scale, err
}

// Shift returns the additive term of the current linear map.
func (n *Normalizer) Shift() (float64, error) {
	_, shift, err := n.transform()

	return shift, err
}

// Empty reports whether there are no unread samples.
func (n *Normalizer) Empty() bool { return n.empty }

// Full reports whether every slot holds an unread sample.
func (n *Normalizer) Full() bool { return n.full }

// Len returns the number of resident samples the statistics cover.
func (n *Normalizer) Len() int { return n.moments.Count() }

// Cap returns the buffer capacity.
func (n *Normalizer) Cap() int { return len(n.buf) }

// Mean returns the running mean of the resident samples.
func (n *Normalizer) Mean() float64 { return n.moments.Mean() }

// Stdev returns the running population standard deviation of the resident samples.
func (n *Normalizer) Stdev() float64 { return n.moments.StdDev() }

// VarSum returns the running sum of squared deviations of the resident samples.
func (n *Normalizer) VarSum() float64 { return n.moments.VarSum() }

func (n *Normalizer) transform() (scale, shift float64, err error) {
	if n.moments.Count() == 0 || n.moments.VarSum() <= 0 {
		return 0, 0, ErrNoVariance
	}

	scale = n.targetStdev / math.Sqrt(n.moments.Variance())
	shift = n.targetMean - scale*n.moments.Mean()

	return scale, shift, nil
}

func (n *Normalizer) advance(cursor int) int {
	cursor++
	if cursor == len(n.buf) {
		return 0
	}

	return cursor
}
