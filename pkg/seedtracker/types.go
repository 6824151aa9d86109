package seedtracker

import (
	"errors"
	"fmt"
	"strings"
)

// Strand is the reference orientation a seed was matched on.
type Strand uint8

// Strands.
const (
	Forward Strand = iota
	Reverse
)

// ErrUnknownStrand is returned by ParseStrand for unrecognized input.
var ErrUnknownStrand = errors.New("unknown strand")

func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}

	return "+"
}

// ParseStrand accepts "+", "-", "fwd", "rev", "forward" and "reverse" in any case.
// An empty string is Forward.
func ParseStrand(raw string) (Strand, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "+", "fwd", "forward":
		return Forward, nil
	case "-", "rev", "reverse":
		return Reverse, nil
	default:
		return Forward, fmt.Errorf("%w: %q", ErrUnknownStrand, raw)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strand) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strand) UnmarshalText(text []byte) error {
	parsed, err := ParseStrand(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// Hit is a seed match between a reference interval [RefStart, RefEnd) and an
// event interval [EvtStart, EvtEnd). Length is how many matched positions it represents.
type Hit struct {
	Strand   Strand `json:"strand"    yaml:"strand"`
	RefStart int    `json:"ref_start" yaml:"ref_start"`
	RefEnd   int    `json:"ref_end"   yaml:"ref_end"`
	EvtStart int    `json:"evt_start" yaml:"evt_start"`
	EvtEnd   int    `json:"evt_end"   yaml:"evt_end"`
	Length   int    `json:"length"    yaml:"length"`
}

// State is the lifecycle stage of a chain. Chains never close.
type State uint8

// Chain states.
const (
	// Open chains hold the single seed that created them.
	Open State = iota
	// Extended chains have absorbed at least one further seed or chain.
	Extended
)

func (s State) String() string {
	if s == Extended {
		return "extended"
	}

	return "open"
}

// Chain is a maximal run of colinear seeds. Length is the sum of the merged seed
// lengths and may exceed either interval width.
type Chain struct {
	ID       uint64 `json:"id"        yaml:"id"`
	Strand   Strand `json:"strand"    yaml:"strand"`
	RefStart int    `json:"ref_start" yaml:"ref_start"`
	RefEnd   int    `json:"ref_end"   yaml:"ref_end"`
	EvtStart int    `json:"evt_start" yaml:"evt_start"`
	EvtEnd   int    `json:"evt_end"   yaml:"evt_end"`
	Length   int    `json:"length"    yaml:"length"`
	Seeds    int    `json:"seeds"     yaml:"seeds"`
}

// State derives the chain's lifecycle stage from its seed count.
func (c Chain) State() State {
	if c.Seeds > 1 {
		return Extended
	}

	return Open
}

// Span returns the chain's reference and event intervals as a Hit-shaped value.
func (c Chain) Span() Hit {
	return Hit{
		Strand:   c.Strand,
		RefStart: c.RefStart,
		RefEnd:   c.RefEnd,
		EvtStart: c.EvtStart,
		EvtEnd:   c.EvtEnd,
		Length:   c.Length,
	}
}

func (c Chain) String() string {
	return fmt.Sprintf("chain#%d %s ref[%d,%d) evt[%d,%d) len=%d seeds=%d",
		c.ID, c.Strand, c.RefStart, c.RefEnd, c.EvtStart, c.EvtEnd, c.Length, c.Seeds)
}

// Stats counts tracker activity since creation or the last Reset.
type Stats struct {
	// Seeds is the number of hits consumed.
	Seeds int `json:"seeds"   yaml:"seeds"`
	// Created is the number of chains started from an unmergeable hit.
	Created int `json:"created" yaml:"created"`
	// Merged is the number of hits absorbed by an existing chain.
	Merged int `json:"merged"  yaml:"merged"`
	// Joined is the number of chains absorbed by a neighbour after an extension.
	Joined int `json:"joined"  yaml:"joined"`
}
