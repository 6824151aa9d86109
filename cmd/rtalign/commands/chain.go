package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sumatoshi-tech/rtalign/pkg/config"
	"github.com/Sumatoshi-tech/rtalign/pkg/observability"
	"github.com/Sumatoshi-tech/rtalign/pkg/readio"
	"github.com/Sumatoshi-tech/rtalign/pkg/report"
	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

const (
	flagMinLength        = "min-length"
	flagMaxRefGap        = "max-ref-gap"
	flagMaxEvtGap        = "max-evt-gap"
	flagMaxDiagonalDrift = "max-diagonal-drift"
	flagSnapshotDir      = "snapshot-dir"
	flagReadID           = "read-id"
)

// ChainCommand holds the flags of the chain command.
type ChainCommand struct {
	globals *Globals

	format      string
	minLength   int
	policy      seedtracker.MergePolicy
	snapshotDir string
	readID      string
}

// NewChainCommand creates the chain command.
func NewChainCommand(globals *Globals) *cobra.Command {
	cc := &ChainCommand{globals: globals}

	cmd := &cobra.Command{
		Use:   "chain [hits-file]",
		Short: "Chain colinear seed hits into alignments",
		Long: `Chain reads seed hits, one per line as
  ref_start ref_end evt_start evt_end length [strand]
(tab or space separated, "#" starts a comment) and merges colinear hits into
chains. Alignments at least --min-length long are printed best first.

With --snapshot-dir the tracker state is resumed from a previous run in that
directory and saved back afterwards, so hits can be fed in several batches.`,
		Args: cobra.MaximumNArgs(1),
		RunE: cc.run,
	}

	defaults := seedtracker.DefaultPolicy()

	cmd.Flags().StringVarP(&cc.format, flagFormat, "f", string(report.FormatTable), "output format: table, text, json, yaml or plot")
	cmd.Flags().IntVar(&cc.minLength, flagMinLength, config.DefaultMinLength, "minimum total seed length of a reported alignment")
	cmd.Flags().IntVar(&cc.policy.MaxRefGap, flagMaxRefGap, defaults.MaxRefGap, "largest reference gap bridged by a merge")
	cmd.Flags().IntVar(&cc.policy.MaxEvtGap, flagMaxEvtGap, defaults.MaxEvtGap, "largest event gap bridged by a merge")
	cmd.Flags().IntVar(&cc.policy.MaxDiagonalDrift, flagMaxDiagonalDrift, defaults.MaxDiagonalDrift,
		"largest difference between reference and event gaps")
	cmd.Flags().StringVar(&cc.snapshotDir, flagSnapshotDir, "", "resume from and save the tracker state in this directory")
	cmd.Flags().StringVar(&cc.readID, flagReadID, "", "read identifier shown in the report")

	return cmd
}

func (cc *ChainCommand) run(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(cc.format)
	if err != nil {
		return err
	}

	cfg, err := cc.globals.loadConfig(cmd)
	if err != nil {
		return err
	}

	cc.applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	providers, err := initObservability(cmd, cfg, observability.ModeCLI, false)
	if err != nil {
		return err
	}
	defer shutdownObservability(providers)

	ctx, span := providers.Tracer.Start(cmd.Context(), "rtalign.cli.chain")
	defer span.End()

	in, _, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer in.Close()

	hits, err := readio.ReadHits(in)
	if err != nil {
		return err
	}

	tracker, resumed, err := cc.openTracker(cfg.Tracker.MergePolicy)
	if err != nil {
		return err
	}

	tracker.AddSeeds(hits)

	if cc.snapshotDir != "" {
		err = tracker.SaveSnapshot(cc.snapshotDir)
		if err != nil {
			return err
		}
	}

	st := tracker.Stats()
	span.SetAttributes(
		attribute.Int("tracker.seeds", st.Seeds),
		attribute.Int("tracker.chains", tracker.Len()),
		attribute.Bool("tracker.resumed", resumed),
	)

	providers.Logger.InfoContext(ctx, "seeds chained",
		"hits", len(hits), "chains", tracker.Len(), "merged", st.Merged, "joined", st.Joined, "resumed", resumed)

	doc := report.Alignments{
		ReadID: cc.readID,
		Chains: tracker.Alignments(cfg.Tracker.MinLength),
	}

	return report.WriteAlignments(cmd.OutOrStdout(), format, doc)
}

func (cc *ChainCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed(flagMinLength) {
		cfg.Tracker.MinLength = cc.minLength
	}

	if flags.Changed(flagMaxRefGap) {
		cfg.Tracker.MaxRefGap = cc.policy.MaxRefGap
	}

	if flags.Changed(flagMaxEvtGap) {
		cfg.Tracker.MaxEvtGap = cc.policy.MaxEvtGap
	}

	if flags.Changed(flagMaxDiagonalDrift) {
		cfg.Tracker.MaxDiagonalDrift = cc.policy.MaxDiagonalDrift
	}
}

// openTracker resumes the snapshot in the snapshot directory when there is
// one. A resumed tracker keeps the policy it was saved with.
func (cc *ChainCommand) openTracker(policy seedtracker.MergePolicy) (*seedtracker.Tracker, bool, error) {
	if cc.snapshotDir != "" {
		_, statErr := os.Stat(seedtracker.SnapshotPath(cc.snapshotDir))

		switch {
		case statErr == nil:
			tracker, err := seedtracker.LoadSnapshot(cc.snapshotDir)
			if err != nil {
				return nil, false, err
			}

			return tracker, true, nil
		case !errors.Is(statErr, fs.ErrNotExist):
			return nil, false, fmt.Errorf("stat tracker snapshot: %w", statErr)
		}
	}

	tracker, err := seedtracker.NewTracker(policy)
	if err != nil {
		return nil, false, err
	}

	return tracker, false, nil
}
