// Package commands implements CLI command handlers for rtalign.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rtalign/pkg/version"
)

// NewRootCommand builds the rtalign command tree.
func NewRootCommand() *cobra.Command {
	globals := &Globals{}

	rootCmd := &cobra.Command{
		Use:   "rtalign",
		Short: "Real-time nanopore signal normalization and seed chaining",
		Long: `rtalign normalizes raw current samples to a target distribution and chains
colinear seed hits into candidate alignments, the two steps a read-until
loop runs while a read is still in the pore.

Commands:
  normalize  Normalize a raw signal in batch or streaming mode
  chain      Chain seed hits into alignments
  replay     Stream recorded reads through concurrent sessions`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	globals.Register(rootCmd)

	rootCmd.AddCommand(NewNormalizeCommand(globals))
	rootCmd.AddCommand(NewChainCommand(globals))
	rootCmd.AddCommand(NewReplayCommand(globals))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rtalign %s\n", version.String())
		},
	}
}
