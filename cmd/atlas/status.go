package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/atlas/pkg/cli"
	"mercator-hq/atlas/pkg/controlplane"
	"mercator-hq/atlas/pkg/registry"
)

var statusFlags struct {
	output  string
	timeout time.Duration
}

var statusCmd = &cobra.Command{
	Use:   "status [service]",
	Short: "Show the reconciled view of the fleet or of one service",
	Long: `Reconcile service facts from the backing systems and print the
result. With a service argument, prints every reconciled field of that
service with its winning source and conflict flags; without, prints a
fleet summary.

Examples:
  # Fleet summary
  atlas status

  # One service, with provenance
  atlas status checkout

  # Machine-readable
  atlas status checkout --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFlags.output, "output", "o", "text", "output format (text, json)")
	statusCmd.Flags().DurationVar(&statusFlags.timeout, "timeout", 30*time.Second, "overall reconcile timeout")
}

// withControlPlane builds a control plane for a one-shot command, runs
// fn, and tears it down (draining the audit recorder).
func withControlPlane(timeout time.Duration, fn func(ctx context.Context, cp *controlplane.ControlPlane) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	collectors, err := buildCollectors(cfg, logger)
	if err != nil {
		return err
	}

	cp, err := controlplane.New(controlplane.Options{
		Config:     cfg,
		Logger:     logger,
		Collectors: collectors,
	})
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := cp.Stop(); stopErr != nil {
			logger.Warn("control plane teardown", "error", stopErr)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx, cp)
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withControlPlane(statusFlags.timeout, func(ctx context.Context, cp *controlplane.ControlPlane) error {
		if len(args) == 1 {
			record, err := cp.Service(ctx, args[0])
			if err != nil {
				return err
			}
			return printRecord(record)
		}

		reg, err := cp.ReconcileState(ctx)
		if err != nil {
			return err
		}
		return printRegistry(reg)
	})
}

func printRecord(record *registry.ReconciledRecord) error {
	if statusFlags.output == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, record)
	}

	fmt.Printf("Service: %s\n\n", record.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tVALUE\tSOURCE\tFLAGS")

	fields := make([]string, 0, len(record.Fields))
	for name := range record.Fields {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	for _, name := range fields {
		f := record.Fields[name]
		value := f.Value
		if !f.Known {
			value = "(unknown)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, value, f.Source, fieldFlags(f))
	}
	return w.Flush()
}

func fieldFlags(f registry.ReconciledField) string {
	var flags []string
	if f.Conflict {
		flags = append(flags, "conflict")
	}
	if f.Provisional {
		flags = append(flags, "provisional")
	}
	if f.Stale {
		flags = append(flags, "stale")
	}
	if len(flags) == 0 {
		return "-"
	}
	out := flags[0]
	for _, fl := range flags[1:] {
		out += "," + fl
	}
	return out
}

func printRegistry(reg registry.ServiceRegistry) error {
	if statusFlags.output == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, reg)
	}

	fmt.Printf("Registry as of %s (%d services)\n\n", reg.AsOf.Format(time.RFC3339), len(reg.Services))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tFIELDS\tCONFLICTS")
	for _, name := range reg.Names() {
		record := reg.Services[name]
		fmt.Fprintf(w, "%s\t%d\t%d\n", name, len(record.Fields), len(record.Conflicts()))
	}
	return w.Flush()
}
