package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Aegis - adaptive governance engine for multi-agent systems",
	Long: `Aegis governs inter-agent message traffic with an adaptive,
fail-closed decision pipeline.

Every message is scored for impact, classified against mode-dependent
thresholds, checked by role-separated validators (with quorum for
CRITICAL traffic), optionally confirmed by an external policy service,
and recorded in a tamper-evident hash-chained audit ledger.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
