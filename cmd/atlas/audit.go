package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/atlas/pkg/audit"
	auditstorage "mercator-hq/atlas/pkg/audit/storage"
	"mercator-hq/atlas/pkg/cli"
)

var auditFlags struct {
	service string
	kinds   []string
	since   time.Duration
	limit   int
	offset  int
	output  string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit trail",
	Long: `Query the persisted audit trail: reconciliation conflicts and
composition outcomes.

Examples:
  # Everything recorded in the last day
  atlas audit query --since 24h

  # Conflicts for one service
  atlas audit query --service checkout --kind conflict

  # Rejected compositions, machine-readable
  atlas audit query --kind composition --output json`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit records",
	RunE:  runAuditQuery,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd)

	auditQueryCmd.Flags().StringVar(&auditFlags.service, "service", "", "filter by service name")
	auditQueryCmd.Flags().StringSliceVar(&auditFlags.kinds, "kind", nil, "filter by record kind (conflict, composition)")
	auditQueryCmd.Flags().DurationVar(&auditFlags.since, "since", 0, "only records newer than this age (e.g. 24h)")
	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", 100, "max results")
	auditQueryCmd.Flags().IntVar(&auditFlags.offset, "offset", 0, "pagination offset")
	auditQueryCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "text", "output format (text, json)")
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	if cfg.Audit.Backend != "sqlite" {
		return cli.NewConfigError("audit.backend",
			fmt.Sprintf("backend %q holds no queryable history", cfg.Audit.Backend))
	}

	sqliteCfg := auditstorage.DefaultSQLiteConfig()
	sqliteCfg.Path = cfg.Audit.SQLitePath
	store, err := auditstorage.NewSQLiteStorage(sqliteCfg, logger)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	defer store.Close()

	query := &audit.Query{
		Service: auditFlags.service,
		Limit:   auditFlags.limit,
		Offset:  auditFlags.offset,
	}
	for _, k := range auditFlags.kinds {
		switch strings.ToLower(k) {
		case "conflict":
			query.Kinds = append(query.Kinds, audit.KindConflict)
		case "composition":
			query.Kinds = append(query.Kinds, audit.KindComposition)
		default:
			return fmt.Errorf("unknown record kind %q (conflict, composition)", k)
		}
	}
	if auditFlags.since > 0 {
		query.Since = time.Now().Add(-auditFlags.since)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	records, err := store.Query(ctx, query)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}

	if auditFlags.output == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, records)
	}
	return printAuditRecords(records)
}

func printAuditRecords(records []*audit.Record) error {
	if len(records) == 0 {
		fmt.Println("No records.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tSERVICE\tDETAIL")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.RecordedTime.Format(time.RFC3339), r.Kind, r.Service, auditDetail(r))
	}
	return w.Flush()
}

func auditDetail(r *audit.Record) string {
	switch r.Kind {
	case audit.KindConflict:
		return fmt.Sprintf("%s=%s from %s (%d claims)",
			r.Field, r.ChosenValue, r.ChosenSource, len(r.Competing))
	case audit.KindComposition:
		detail := fmt.Sprintf("%s/%s, %d artifacts", r.Mode, r.Outcome, r.ArtifactCount)
		if len(r.Violations) > 0 {
			detail += fmt.Sprintf(", %d violations", len(r.Violations))
		}
		if r.Error != "" {
			detail += ", error: " + r.Error
		}
		return detail
	default:
		return ""
	}
}
