package readuntil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/rtalign/pkg/alg/stats"
	"github.com/Sumatoshi-tech/rtalign/pkg/normalizer"
	"github.com/Sumatoshi-tech/rtalign/pkg/observability"
	"github.com/Sumatoshi-tech/rtalign/pkg/readio"
	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

// ErrEmptyRead is returned for a record without samples.
var ErrEmptyRead = errors.New("read has no samples")

// Result describes one processed read.
type Result struct {
	ID      string `json:"id"`
	Samples int    `json:"samples"`
	// Normalized is filled only when Options.KeepSignal is set.
	Normalized  []float64 `json:"normalized,omitempty"`
	OutputMean  float64   `json:"output_mean"`
	OutputStdev float64   `json:"output_stdev"`
	// Backpressure counts pushes refused by a full buffer.
	Backpressure int `json:"backpressure"`
	// Discarded counts samples skipped by DiscardUnread.
	Discarded int `json:"discarded"`
	// Unscaled counts samples dropped because the buffer had no variance yet.
	Unscaled   int                 `json:"unscaled"`
	Seeds      int                 `json:"seeds"`
	Chains     int                 `json:"chains"`
	Alignments []seedtracker.Chain `json:"alignments"`
	// Polls is the number of alignment polls during streaming.
	Polls int `json:"polls"`
	// FirstAligned is the number of samples streamed when a chain of at least
	// MinLength first appeared, or -1 when none did.
	FirstAligned int               `json:"first_aligned"`
	Stats        seedtracker.Stats `json:"stats"`
	Duration     time.Duration     `json:"duration_ns"`
	Err          string            `json:"error,omitempty"`
}

// BestLength returns the total length of the best alignment, or 0.
func (r Result) BestLength() int {
	if len(r.Alignments) == 0 {
		return 0
	}

	return r.Alignments[0].Length
}

// Session owns one normalizer and one tracker and reuses them across reads.
// A session must not be shared between goroutines.
type Session struct {
	opts    Options
	norm    *normalizer.Normalizer
	tracker *seedtracker.Tracker
	scratch []float64
}

// NewSession validates opts and allocates the per-read state.
func NewSession(opts Options) (*Session, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	norm, err := normalizer.New(opts.Capacity)
	if err != nil {
		return nil, fmt.Errorf("create normalizer: %w", err)
	}

	norm.SetTarget(opts.TargetMean, opts.TargetStdev)

	tracker, err := seedtracker.NewTracker(opts.Policy)
	if err != nil {
		return nil, fmt.Errorf("create tracker: %w", err)
	}

	return &Session{
		opts:    opts,
		norm:    norm,
		tracker: tracker,
		scratch: make([]float64, opts.Capacity),
	}, nil
}

// Options returns the options the session was built with.
func (s *Session) Options() Options {
	return s.opts
}

// readState accumulates the outcome of one read while it streams.
type readState struct {
	res    Result
	output stats.Moments
}

// Process streams rec through the session. Samples are pushed in chunks of
// ChunkSize; after every chunk the unread samples are drained and the seeds
// whose share of the read has arrived are fed to the tracker. Seeds are
// spread over the chunks in proportion to their position in rec.Seeds.
func (s *Session) Process(ctx context.Context, rec readio.Record) (Result, error) {
	start := time.Now()

	if len(rec.Samples) == 0 {
		return Result{ID: rec.ID, FirstAligned: -1}, fmt.Errorf("%w: %s", ErrEmptyRead, rec.ID)
	}

	s.norm.Reset(s.opts.Capacity)
	s.tracker.Reset()

	st := &readState{res: Result{ID: rec.ID, Samples: len(rec.Samples), FirstAligned: -1}}
	if s.opts.KeepSignal {
		st.res.Normalized = make([]float64, 0, len(rec.Samples))
	}

	chunks := (len(rec.Samples) + s.opts.ChunkSize - 1) / s.opts.ChunkSize
	pollEvery := max(s.opts.PollEvery, 1)
	fed := 0

	for chunk := range chunks {
		err := ctx.Err()
		if err != nil {
			return st.res, fmt.Errorf("read %s: %w", rec.ID, err)
		}

		lo := chunk * s.opts.ChunkSize
		hi := min(lo+s.opts.ChunkSize, len(rec.Samples))

		// Chunk spans are dropped unless verbose tracing is on.
		_, span := otel.Tracer(tracerName).Start(ctx, observability.SpanReadChunk,
			trace.WithAttributes(attribute.Int("read.chunk", chunk)))

		s.pushChunk(st, rec.Samples[lo:hi])

		if s.opts.KeepUnread > 0 {
			if skipped, ok := s.norm.DiscardUnread(s.opts.KeepUnread); ok {
				st.res.Discarded += skipped
			}
		}

		s.drain(st)

		due := len(rec.Seeds) * (chunk + 1) / chunks
		s.tracker.AddSeeds(rec.Seeds[fed:due])
		fed = due

		if (chunk+1)%pollEvery == 0 || chunk == chunks-1 {
			s.poll(st, hi)
		}

		span.End()
	}

	st.res.Seeds = len(rec.Seeds)
	st.res.Chains = s.tracker.Len()
	st.res.Stats = s.tracker.Stats()
	st.res.OutputMean = st.output.Mean()
	st.res.OutputStdev = st.output.StdDev()

	st.res.Alignments = s.tracker.Alignments(s.opts.MinLength)
	if s.opts.Top > 0 && len(st.res.Alignments) > s.opts.Top {
		st.res.Alignments = st.res.Alignments[:s.opts.Top]
	}

	st.res.Duration = time.Since(start)

	return st.res, nil
}

// pushChunk pushes samples, draining whenever the buffer refuses one.
func (s *Session) pushChunk(st *readState, samples []float64) {
	for _, x := range samples {
		if s.norm.Push(x) {
			continue
		}

		st.res.Backpressure++

		// drain always leaves the buffer empty.
		s.drain(st)
		s.norm.Push(x)
	}
}

// drain pops every unread sample. Samples that cannot be scaled because the
// resident window has no variance are discarded.
func (s *Session) drain(st *readState) {
	for !s.norm.Empty() {
		n, err := s.norm.PopBatch(s.scratch)
		for _, v := range s.scratch[:n] {
			st.output.Add(v)
		}

		if s.opts.KeepSignal {
			st.res.Normalized = append(st.res.Normalized, s.scratch[:n]...)
		}

		if errors.Is(err, normalizer.ErrNoVariance) {
			skipped, _ := s.norm.DiscardUnread(0)
			st.res.Unscaled += skipped
		}
	}
}

func (s *Session) poll(st *readState, streamed int) {
	st.res.Polls++

	if st.res.FirstAligned >= 0 {
		return
	}

	best, ok := s.tracker.Best()
	if ok && best.Length >= s.opts.MinLength {
		st.res.FirstAligned = streamed
	}
}
