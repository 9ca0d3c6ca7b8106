// Package main provides the entry point for the athenian CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmarkovtsev/athenian-api/cmd/athenian/commands"
	"github.com/vmarkovtsev/athenian-api/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "athenian",
		Short: "CI check run concurrency analytics",
		Long: `Athenian computes concurrency metrics for CI check runs.

Commands:
  compute   Compute concurrency ratios and per-group summaries
  plot      Render a saved snapshot as HTML charts`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewComputeCommand())
	rootCmd.AddCommand(commands.NewPlotCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "athenian %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
