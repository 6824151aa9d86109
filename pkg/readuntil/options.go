// Package readuntil streams recorded reads through a per-read normalizer and
// seed tracker pair, the way a live read-until loop consumes an instrument.
package readuntil

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/rtalign/pkg/config"
	"github.com/Sumatoshi-tech/rtalign/pkg/normalizer"
	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

// ErrInvalidOptions is returned for options no session can run with.
var ErrInvalidOptions = errors.New("invalid session options")

// Default chunking.
const (
	DefaultChunkSize = 400
	DefaultTop       = 5
)

// Options configures one session. Every worker of a pool gets its own copy.
type Options struct {
	// Capacity is the normalizer buffer size.
	Capacity    int
	TargetMean  float64
	TargetStdev float64

	Policy seedtracker.MergePolicy

	// ChunkSize is the number of samples pushed between two drains.
	ChunkSize int
	// KeepUnread, when positive, discards all but the newest KeepUnread unread
	// samples before each drain.
	KeepUnread int
	// Top caps the number of alignments kept in a Result. Zero keeps all.
	Top int
	// MinLength filters alignments by total seed length.
	MinLength int
	// PollEvery is the number of chunks between two alignment polls.
	PollEvery int
	// KeepSignal stores every normalized value in the Result.
	KeepSignal bool
}

// DefaultOptions returns options matching the package defaults of the
// normalizer and tracker.
func DefaultOptions() Options {
	return Options{
		Capacity:    normalizer.DefaultCapacity,
		TargetMean:  normalizer.DefaultTargetMean,
		TargetStdev: normalizer.DefaultTargetStdev,
		Policy:      seedtracker.DefaultPolicy(),
		ChunkSize:   DefaultChunkSize,
		Top:         DefaultTop,
		PollEvery:   1,
	}
}

// OptionsFromConfig maps the normalizer, tracker and replay sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Capacity:    cfg.Normalizer.BufferSize,
		TargetMean:  cfg.Normalizer.TargetMean,
		TargetStdev: cfg.Normalizer.TargetStdev,
		Policy:      cfg.Tracker.MergePolicy,
		ChunkSize:   cfg.Replay.ChunkSize,
		KeepUnread:  cfg.Replay.KeepUnread,
		Top:         cfg.Replay.Top,
		MinLength:   cfg.Tracker.MinLength,
		PollEvery:   cfg.Replay.PollEvery,
	}
}

// Validate rejects options that cannot drive a session.
func (o Options) Validate() error {
	switch {
	case o.Capacity <= 0:
		return fmt.Errorf("%w: capacity %d", ErrInvalidOptions, o.Capacity)
	case o.TargetStdev <= 0:
		return fmt.Errorf("%w: target stdev %g", ErrInvalidOptions, o.TargetStdev)
	case o.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size %d", ErrInvalidOptions, o.ChunkSize)
	case o.KeepUnread < 0:
		return fmt.Errorf("%w: keep unread %d", ErrInvalidOptions, o.KeepUnread)
	case o.Top < 0:
		return fmt.Errorf("%w: top %d", ErrInvalidOptions, o.Top)
	}

	err := o.Policy.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	return nil
}
