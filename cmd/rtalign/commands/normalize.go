package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rtalign/pkg/config"
	"github.com/Sumatoshi-tech/rtalign/pkg/normalizer"
	"github.com/Sumatoshi-tech/rtalign/pkg/observability"
	"github.com/Sumatoshi-tech/rtalign/pkg/readio"
	"github.com/Sumatoshi-tech/rtalign/pkg/report"
)

// ErrNoSamples is returned when the input holds no samples.
var ErrNoSamples = errors.New("input has no samples")

const (
	flagStream      = "stream"
	flagBufferSize  = "buffer-size"
	flagTargetMean  = "target-mean"
	flagTargetStdev = "target-stdev"
)

// NormalizeCommand holds the flags of the normalize command.
type NormalizeCommand struct {
	globals *Globals

	format      string
	stream      bool
	bufferSize  int
	targetMean  float64
	targetStdev float64
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(globals *Globals) *cobra.Command {
	nc := &NormalizeCommand{globals: globals}

	cmd := &cobra.Command{
		Use:   "normalize [samples-file]",
		Short: "Normalize raw signal samples to a target mean and stdev",
		Long: `Normalize reads one sample per line (stdin when no file or "-" is given,
".gz" files are decompressed) and rescales them to the target distribution.

By default all samples are loaded as one batch and scaled with their exact
moments. With --stream they are pushed through the rolling buffer instead and
scaled with the moments of the buffer window, draining whenever it fills.`,
		Args: cobra.MaximumNArgs(1),
		RunE: nc.run,
	}

	cmd.Flags().StringVarP(&nc.format, flagFormat, "f", string(report.FormatText), "output format: text, table, json, yaml or plot")
	cmd.Flags().BoolVar(&nc.stream, flagStream, false, "push samples through the rolling buffer")
	cmd.Flags().IntVar(&nc.bufferSize, flagBufferSize, config.DefaultBufferSize, "rolling buffer capacity in streaming mode")
	cmd.Flags().Float64Var(&nc.targetMean, flagTargetMean, config.DefaultTargetMean, "target mean")
	cmd.Flags().Float64Var(&nc.targetStdev, flagTargetStdev, config.DefaultTargetStdev, "target standard deviation")

	return cmd
}

func (nc *NormalizeCommand) run(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(nc.format)
	if err != nil {
		return err
	}

	cfg, err := nc.globals.loadConfig(cmd)
	if err != nil {
		return err
	}

	nc.applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	providers, err := initObservability(cmd, cfg, observability.ModeCLI, false)
	if err != nil {
		return err
	}
	defer shutdownObservability(providers)

	ctx, span := providers.Tracer.Start(cmd.Context(), "rtalign.cli.normalize")
	defer span.End()

	in, path, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer in.Close()

	samples, err := readio.ReadSamples(in)
	if err != nil {
		return err
	}

	if len(samples) == 0 {
		return ErrNoSamples
	}

	sig := report.Signal{
		TargetMean: cfg.Normalizer.TargetMean,
		TargetStd:  cfg.Normalizer.TargetStdev,
		Raw:        samples,
	}

	if path != readio.Stdin {
		sig.ReadID = filepath.Base(path)
	}

	if nc.stream {
		err = normalizeStream(&sig, cfg.Normalizer)
	} else {
		err = normalizeBatch(&sig, cfg.Normalizer)
	}

	if err != nil {
		return err
	}

	providers.Logger.DebugContext(ctx, "signal normalized",
		"samples", len(samples), "normalized", len(sig.Normalized), "stream", nc.stream)

	return report.WriteSignal(cmd.OutOrStdout(), format, sig)
}

func (nc *NormalizeCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed(flagBufferSize) {
		cfg.Normalizer.BufferSize = nc.bufferSize
	}

	if flags.Changed(flagTargetMean) {
		cfg.Normalizer.TargetMean = nc.targetMean
	}

	if flags.Changed(flagTargetStdev) {
		cfg.Normalizer.TargetStdev = nc.targetStdev
	}
}

func normalizeBatch(sig *report.Signal, nc config.NormalizerConfig) error {
	norm, err := normalizer.New(len(sig.Raw))
	if err != nil {
		return err
	}

	norm.SetTarget(nc.TargetMean, nc.TargetStdev)

	err = norm.LoadBatch(sig.Raw)
	if err != nil {
		return err
	}

	sig.Mean, sig.Stdev = norm.Mean(), norm.Stdev()
	sig.Normalized = make([]float64, len(sig.Raw))

	n, err := norm.PopBatch(sig.Normalized)
	if err != nil {
		return fmt.Errorf("normalize batch: %w", err)
	}

	sig.Normalized = sig.Normalized[:n]

	return nil
}

// normalizeStream pushes every sample and drains the buffer whenever a push
// is refused. Samples read while the window has no variance are dropped.
func normalizeStream(sig *report.Signal, nc config.NormalizerConfig) error {
	norm, err := normalizer.New(nc.BufferSize)
	if err != nil {
		return err
	}

	norm.SetTarget(nc.TargetMean, nc.TargetStdev)

	sig.Normalized = make([]float64, 0, len(sig.Raw))
	chunk := make([]float64, nc.BufferSize)

	drain := func() error {
		for norm.UnreadCount() > 0 {
			n, popErr := norm.PopBatch(chunk)
			if errors.Is(popErr, normalizer.ErrNoVariance) {
				norm.DiscardUnread(0)

				return nil
			}

			if popErr != nil {
				return fmt.Errorf("normalize stream: %w", popErr)
			}

			sig.Normalized = append(sig.Normalized, chunk[:n]...)
		}

		return nil
	}

	for _, sample := range sig.Raw {
		if norm.Push(sample) {
			continue
		}

		err = drain()
		if err != nil {
			return err
		}

		norm.Push(sample)
	}

	sig.Mean, sig.Stdev = norm.Mean(), norm.Stdev()

	return drain()
}
