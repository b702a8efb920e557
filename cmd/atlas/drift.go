package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/atlas/pkg/cli"
	"mercator-hq/atlas/pkg/controlplane"
)

var driftFlags struct {
	output  string
	timeout time.Duration
}

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Report fields on which the backing systems disagree",
	Long: `Reconcile and report every service field for which at least two
backing systems claim differing values. The reconciled registry always
carries a single winner per field; drift shows what the winner beat.

Examples:
  atlas drift
  atlas drift --output json`,
	RunE: runDrift,
}

func init() {
	rootCmd.AddCommand(driftCmd)

	driftCmd.Flags().StringVarP(&driftFlags.output, "output", "o", "text", "output format (text, json)")
	driftCmd.Flags().DurationVar(&driftFlags.timeout, "timeout", 30*time.Second, "overall reconcile timeout")
}

func runDrift(cmd *cobra.Command, args []string) error {
	return withControlPlane(driftFlags.timeout, func(ctx context.Context, cp *controlplane.ControlPlane) error {
		if _, err := cp.ReconcileState(ctx); err != nil {
			return err
		}
		report := cp.Drift()

		if driftFlags.output == "json" {
			return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, report)
		}

		if len(report.Fields) == 0 {
			fmt.Println("No drift: all sources agree.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tFIELD\tSOURCE\tVALUE")
		for _, field := range report.Fields {
			for _, claim := range field.Claims {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", field.Service, field.Field, claim.Source, claim.Value)
			}
		}
		return w.Flush()
	})
}
