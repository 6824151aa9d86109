package readuntil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/rtalign/pkg/observability"
	"github.com/Sumatoshi-tech/rtalign/pkg/readio"
)

const (
	tracerName = "rtalign.readuntil"
	spanRead   = "rtalign.read"
	opRead     = "replay.read"
)

// Pool processes reads concurrently, one Session per worker.
type Pool struct {
	opts    Options
	workers int
	logger  *slog.Logger
	tracer  trace.Tracer
	reads   *observability.ReadMetrics
	red     *observability.REDMetrics
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of workers. Values below one mean runtime.NumCPU.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) { p.workers = n }
}

// WithLogger sets the logger. Nil means slog.Default.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = logger }
}

// WithTracer sets the tracer used for per-read spans.
func WithTracer(tracer trace.Tracer) PoolOption {
	return func(p *Pool) { p.tracer = tracer }
}

// WithMetrics records per-read statistics and RED metrics. Either may be nil.
func WithMetrics(reads *observability.ReadMetrics, red *observability.REDMetrics) PoolOption {
	return func(p *Pool) {
		p.reads = reads
		p.red = red
	}
}

// NewPool validates opts and applies the pool options.
func NewPool(opts Options, poolOpts ...PoolOption) (*Pool, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	p := &Pool{opts: opts}
	for _, o := range poolOpts {
		o(p)
	}

	if p.workers < 1 {
		p.workers = runtime.NumCPU()
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	if p.tracer == nil {
		p.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}

	p.logger = p.logger.With("component", "readuntil")

	return p, nil
}

// Workers returns the resolved worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Run consumes in until it is closed and sends one Result per record to out.
// A read that fails on its own (for example an empty record) yields a Result
// with Err set; only cancellation stops the pool. out is closed on return.
func (p *Pool) Run(ctx context.Context, in <-chan readio.Record, out chan<- Result) error {
	defer close(out)

	p.logger.InfoContext(ctx, "read pool started", "workers", p.workers)

	g, gCtx := errgroup.WithContext(ctx)
	for i := range p.workers {
		workerID := i
		g.Go(func() error {
			return p.worker(gCtx, workerID, in, out)
		})
	}

	err := g.Wait()
	p.logger.InfoContext(ctx, "read pool stopped")

	return err
}

func (p *Pool) worker(ctx context.Context, workerID int, in <-chan readio.Record, out chan<- Result) error {
	log := p.logger.With("worker", workerID)

	sess, err := NewSession(p.opts)
	if err != nil {
		return fmt.Errorf("worker %d: %w", workerID, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-in:
			if !ok {
				return nil
			}

			res, err := p.process(ctx, log, sess, workerID, rec)
			if err != nil {
				return err
			}

			select {
			case out <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// process runs one read under a span. Only cancellation is returned as an
// error; any other failure is reported on the Result.
func (p *Pool) process(
	ctx context.Context, log *slog.Logger, sess *Session, workerID int, rec readio.Record,
) (Result, error) {
	start := time.Now()

	spanCtx, span := p.tracer.Start(observability.ContextWithRead(ctx, rec.ID), spanRead,
		trace.WithAttributes(
			attribute.String("read.id", rec.ID),
			attribute.Int("read.samples", len(rec.Samples)),
			attribute.Int("read.seeds", len(rec.Seeds)),
			attribute.Int("worker.index", workerID),
		),
	)
	defer span.End()

	done := p.red.TrackInflight(spanCtx, opRead)
	defer done()

	res, err := sess.Process(spanCtx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res.Duration = time.Since(start)
		p.red.RecordRequest(spanCtx, opRead, observability.StatusError, res.Duration)

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res, err
		}

		log.WarnContext(spanCtx, "read failed", "error", err)

		res.Err = err.Error()

		return res, nil
	}

	best := res.BestLength()
	aligned := len(res.Alignments) > 0

	span.SetAttributes(
		attribute.Int("read.chains", res.Chains),
		attribute.Int("read.best_length", best),
		attribute.Bool("read.aligned", aligned),
	)

	p.red.RecordRequest(spanCtx, opRead, observability.StatusOK, res.Duration)
	p.reads.RecordRead(spanCtx, observability.ReadStats{
		Samples:      int64(res.Samples),
		Backpressure: int64(res.Backpressure),
		Discarded:    int64(res.Discarded),
		Seeds:        int64(res.Seeds),
		Created:      int64(res.Stats.Created),
		Merged:       int64(res.Stats.Merged),
		Joined:       int64(res.Stats.Joined),
		BestLength:   best,
		Aligned:      aligned,
		Duration:     res.Duration,
	})

	log.DebugContext(spanCtx, "read done",
		"samples", res.Samples,
		"chains", res.Chains,
		"best", best,
		"duration", res.Duration,
	)

	return res, nil
}
