package seedtracker

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is returned for a merge policy with negative tolerances.
var ErrInvalidPolicy = errors.New("invalid merge policy")

// Default merge tolerances.
const (
	DefaultMaxRefGap        = 4
	DefaultMaxEvtGap        = 4
	DefaultMaxDiagonalDrift = 4
)

// MergePolicy bounds how far apart two spans may be and still chain.
//
// Span a precedes span b when, on the same strand,
//
//	refGap = b.RefStart - a.RefEnd in [0, MaxRefGap]
//	evtGap = b.EvtStart - a.EvtEnd in [0, MaxEvtGap]
//	|refGap - evtGap| <= MaxDiagonalDrift
type MergePolicy struct {
	MaxRefGap        int `json:"max_ref_gap"        mapstructure:"max_ref_gap"        yaml:"max_ref_gap"`
	MaxEvtGap        int `json:"max_evt_gap"        mapstructure:"max_evt_gap"        yaml:"max_evt_gap"`
	MaxDiagonalDrift int `json:"max_diagonal_drift" mapstructure:"max_diagonal_drift" yaml:"max_diagonal_drift"`
}

// DefaultPolicy returns the default tolerances.
func DefaultPolicy() MergePolicy {
	return MergePolicy{
		MaxRefGap:        DefaultMaxRefGap,
		MaxEvtGap:        DefaultMaxEvtGap,
		MaxDiagonalDrift: DefaultMaxDiagonalDrift,
	}
}

// Validate rejects negative tolerances.
func (p MergePolicy) Validate() error {
	switch {
	case p.MaxRefGap < 0:
		return fmt.Errorf("%w: max_ref_gap %d", ErrInvalidPolicy, p.MaxRefGap)
	case p.MaxEvtGap < 0:
		return fmt.Errorf("%w: max_evt_gap %d", ErrInvalidPolicy, p.MaxEvtGap)
	case p.MaxDiagonalDrift < 0:
		return fmt.Errorf("%w: max_diagonal_drift %d", ErrInvalidPolicy, p.MaxDiagonalDrift)
	}

	return nil
}

// Precedes reports whether a can be followed by b, and the combined gap when it can.
func (p MergePolicy) Precedes(a, b Hit) (int, bool) {
	if a.Strand != b.Strand {
		return 0, false
	}

	refGap := b.RefStart - a.RefEnd
	evtGap := b.EvtStart - a.EvtEnd

	if refGap < 0 || refGap > p.MaxRefGap || evtGap < 0 || evtGap > p.MaxEvtGap {
		return 0, false
	}

	drift := refGap - evtGap
	if drift < 0 {
		drift = -drift
	}

	if drift > p.MaxDiagonalDrift {
		return 0, false
	}

	return refGap + evtGap, true
}

// Covers reports whether inner lies within both of outer's intervals on a
// diagonal no further than MaxDiagonalDrift from the ones outer spans.
// Such a hit joins outer with a gap of zero.
func (p MergePolicy) Covers(outer, inner Hit) bool {
	if outer.Strand != inner.Strand {
		return false
	}

	if inner.RefStart < outer.RefStart || inner.RefEnd > outer.RefEnd ||
		inner.EvtStart < outer.EvtStart || inner.EvtEnd > outer.EvtEnd {
		return false
	}

	startDiag := outer.RefStart - outer.EvtStart
	endDiag := outer.RefEnd - outer.EvtEnd
	diag := inner.RefStart - inner.EvtStart

	return diag >= min(startDiag, endDiag)-p.MaxDiagonalDrift &&
		diag <= max(startDiag, endDiag)+p.MaxDiagonalDrift
}

// Mergeable reports whether a and b chain in either order or one covers the
// other, and the combined gap.
func (p MergePolicy) Mergeable(a, b Hit) (int, bool) {
	if gap, ok := p.Precedes(a, b); ok {
		return gap, true
	}

	if gap, ok := p.Precedes(b, a); ok {
		return gap, true
	}

	return 0, p.Covers(a, b) || p.Covers(b, a)
}
