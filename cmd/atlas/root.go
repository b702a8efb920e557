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
	Use:   "atlas",
	Short: "Atlas - service control plane for reconciliation and composition",
	Long: `Atlas reconciles service facts from the platform's backing systems
(source-control metadata, the configuration store, the container
scheduler) into a single registry, without a central database, and
composes policy-validated infrastructure configuration from layered
templates.

The registry is derived state: it is rebuilt from the sources on demand
and cached with a TTL, never persisted as authoritative. Composed
artifacts pass mandatory policy validation before they are released.`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
