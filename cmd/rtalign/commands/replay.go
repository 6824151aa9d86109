package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/rtalign/pkg/config"
	"github.com/Sumatoshi-tech/rtalign/pkg/observability"
	"github.com/Sumatoshi-tech/rtalign/pkg/readio"
	"github.com/Sumatoshi-tech/rtalign/pkg/readuntil"
	"github.com/Sumatoshi-tech/rtalign/pkg/report"
)

// ErrInputClosed is reported by the readiness probe once every record was read.
var ErrInputClosed = errors.New("replay input exhausted")

const (
	flagWorkers     = "workers"
	flagChunkSize   = "chunk-size"
	flagKeepUnread  = "keep-unread"
	flagTop         = "top"
	flagPollEvery   = "poll-every"
	flagKeepSignal  = "keep-signal"
	flagValidate    = "validate"
	flagMetricsAddr = "metrics-addr"
	flagNoColor     = "no-color"
	flagNoSummary   = "no-summary"

	metricsShutdownTimeout = 5 * time.Second
)

// ReplayCommand holds the flags of the replay command.
type ReplayCommand struct {
	globals *Globals

	workers     int
	chunkSize   int
	keepUnread  int
	top         int
	pollEvery   int
	minLength   int
	keepSignal  bool
	validate    bool
	metricsAddr string
	noColor     bool
	noSummary   bool
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(globals *Globals) *cobra.Command {
	rc := &ReplayCommand{globals: globals}

	cmd := &cobra.Command{
		Use:   "replay [records-file]",
		Short: "Stream recorded reads through concurrent read-until sessions",
		Long: `Replay reads JSON records, one per line, of the form
  {"id": "...", "samples": [...], "seeds": [{"ref_start": ..., ...}]}
and streams each read's samples in chunks through its own normalizer while
its seeds are chained, polling alignments the way a live read-until loop
would. One JSON result per read is written to stdout and a run summary to
stderr.

With --metrics-addr a Prometheus scrape endpoint is served at /metrics
(with /healthz and /readyz) for the duration of the run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: rc.run,
	}

	cmd.Flags().IntVarP(&rc.workers, flagWorkers, "w", config.DefaultWorkers, "concurrent sessions (0 = number of CPUs)")
	cmd.Flags().IntVar(&rc.chunkSize, flagChunkSize, config.DefaultChunkSize, "samples pushed between two drains")
	cmd.Flags().IntVar(&rc.keepUnread, flagKeepUnread, config.DefaultKeepUnread,
		"discard all but this many unread samples before each drain (0 = never discard)")
	cmd.Flags().IntVar(&rc.top, flagTop, config.DefaultTop, "alignments kept per read (0 = all)")
	cmd.Flags().IntVar(&rc.pollEvery, flagPollEvery, config.DefaultPollEvery, "chunks between two alignment polls")
	cmd.Flags().IntVar(&rc.minLength, flagMinLength, config.DefaultMinLength, "minimum total seed length of a reported alignment")
	cmd.Flags().BoolVar(&rc.keepSignal, flagKeepSignal, false, "include normalized samples in each result")
	cmd.Flags().BoolVar(&rc.validate, flagValidate, false, "validate every record against the JSON schema")
	cmd.Flags().StringVar(&rc.metricsAddr, flagMetricsAddr, "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&rc.noColor, flagNoColor, false, "disable colored summary")
	cmd.Flags().BoolVar(&rc.noSummary, flagNoSummary, false, "do not print the run summary")

	return cmd
}

func (rc *ReplayCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := rc.globals.loadConfig(cmd)
	if err != nil {
		return err
	}

	rc.applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	metricsAddr := cfg.Observability.MetricsAddr

	providers, err := initObservability(cmd, cfg, observability.ModeReplay, metricsAddr != "")
	if err != nil {
		return err
	}
	defer shutdownObservability(providers)

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return err
	}

	readMetrics, err := observability.NewReadMetrics(providers.Meter)
	if err != nil {
		return err
	}

	opts := readuntil.OptionsFromConfig(cfg)
	opts.KeepSignal = rc.keepSignal

	pool, err := readuntil.NewPool(opts,
		readuntil.WithWorkers(cfg.Replay.Workers),
		readuntil.WithLogger(providers.Logger),
		readuntil.WithTracer(providers.Tracer),
		readuntil.WithMetrics(readMetrics, red),
	)
	if err != nil {
		return err
	}

	var inputDone atomic.Bool

	if metricsAddr != "" {
		srv, srvErr := observability.NewMetricsServer(metricsAddr, providers.MetricsHandler, providers.Tracer, red,
			func(_ context.Context) error {
				if inputDone.Load() {
					return ErrInputClosed
				}

				return nil
			})
		if srvErr != nil {
			return srvErr
		}

		providers.Logger.Info("serving metrics", "addr", srv.Addr())

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()

			closeErr := srv.Close(ctx)
			if closeErr != nil {
				providers.Logger.Warn("metrics server shutdown failed", "error", closeErr)
			}
		}()
	}

	in, _, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer in.Close()

	records, err := readio.NewRecordReader(in, rc.validate)
	if err != nil {
		return err
	}

	summary, err := replay(cmd.Context(), pool, records, cmd.OutOrStdout(), &inputDone)

	providers.Logger.Info("replay finished",
		"reads", summary.Reads, "aligned", summary.Aligned, "failed", summary.Failed,
		"elapsed", summary.Elapsed)

	if !rc.noSummary {
		colorize := !rc.noColor && !color.NoColor

		summaryErr := report.WriteSummary(cmd.ErrOrStderr(), summary, colorize)
		if summaryErr != nil {
			return errors.Join(err, summaryErr)
		}
	}

	return err
}

func (rc *ReplayCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	overrides := []struct {
		name string
		dst  *int
		val  int
	}{
		{flagWorkers, &cfg.Replay.Workers, rc.workers},
		{flagChunkSize, &cfg.Replay.ChunkSize, rc.chunkSize},
		{flagKeepUnread, &cfg.Replay.KeepUnread, rc.keepUnread},
		{flagTop, &cfg.Replay.Top, rc.top},
		{flagPollEvery, &cfg.Replay.PollEvery, rc.pollEvery},
		{flagMinLength, &cfg.Tracker.MinLength, rc.minLength},
	}

	for _, o := range overrides {
		if flags.Changed(o.name) {
			*o.dst = o.val
		}
	}

	if flags.Changed(flagMetricsAddr) {
		cfg.Observability.MetricsAddr = rc.metricsAddr
	}
}

// replay feeds records to the pool and streams results to out as JSONL.
// The returned summary covers every result written, even on error.
func replay(
	ctx context.Context, pool *readuntil.Pool, records *readio.RecordReader, out io.Writer, inputDone *atomic.Bool,
) (report.Summary, error) {
	start := time.Now()

	in := make(chan readio.Record, pool.Workers())
	results := make(chan readuntil.Result, pool.Workers())

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(in)
		defer inputDone.Store(true)

		for {
			rec, err := records.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}

			if err != nil {
				return err
			}

			select {
			case in <- rec:
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}
	})

	g.Go(func() error {
		return pool.Run(gCtx, in, results)
	})

	lines, writeDone := readio.StartJSONL[readuntil.Result](out, 0)

	var summary report.Summary

	for res := range results {
		accumulate(&summary, res)

		lines <- res
	}

	close(lines)

	writeErr := <-writeDone
	runErr := g.Wait()

	summary.Elapsed = time.Since(start)

	if writeErr != nil {
		writeErr = fmt.Errorf("write results: %w", writeErr)
	}

	return summary, errors.Join(runErr, writeErr)
}

func accumulate(s *report.Summary, res readuntil.Result) {
	s.Reads++

	if res.Err != "" {
		s.Failed++

		return
	}

	if len(res.Alignments) > 0 {
		s.Aligned++
	}

	s.Samples += int64(res.Samples)
	s.Seeds += int64(res.Seeds)
	s.Chains += int64(res.Chains)
	s.Backpressure += int64(res.Backpressure)
	s.Discarded += int64(res.Discarded)
	s.BestLengths = append(s.BestLengths, float64(res.BestLength()))
	s.Latencies = append(s.Latencies, res.Duration.Seconds())
}
