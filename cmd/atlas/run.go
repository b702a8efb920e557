package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/atlas/pkg/audit"
	"mercator-hq/atlas/pkg/cli"
	"mercator-hq/atlas/pkg/controlplane"
	"mercator-hq/atlas/pkg/telemetry/health"
	"mercator-hq/atlas/pkg/telemetry/metrics"
)

var runFlags struct {
	logLevel  string
	dryRun    bool
	reconcile bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Atlas control plane",
	Long: `Start the control plane: the reconcile scheduler, the template
watcher, change-signal consumption, and the telemetry HTTP endpoints.

Examples:
  # Start with default config
  atlas run

  # Start with custom config
  atlas run --config /etc/atlas/config.yaml

  # Validate config without starting
  atlas run --dry-run

  # Reconcile immediately on startup instead of waiting for the schedule
  atlas run --reconcile`,
	RunE: runControlPlane,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
	runCmd.Flags().BoolVar(&runFlags.reconcile, "reconcile", false, "run a reconcile cycle immediately on startup")
}

func runControlPlane(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	collectors, err := buildCollectors(cfg, logger)
	if err != nil {
		return err
	}
	if len(collectors) == 0 {
		return cli.NewConfigError("collectors", "no collectors enabled: the registry would always be empty")
	}

	metricsCollector := metrics.NewCollector(nil)

	cp, err := controlplane.New(controlplane.Options{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metricsCollector,
		Collectors: collectors,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cp.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Printf("✓ Control plane started (%d collectors)\n", len(collectors))

	if runFlags.reconcile {
		if _, err := cp.ReconcileState(ctx); err != nil {
			logger.Error("startup reconcile failed", "error", err)
		} else {
			fmt.Println("✓ Initial reconcile complete")
		}
	}

	var httpServer *http.Server
	errChan := make(chan error, 1)
	if enabled(cfg.Telemetry.Metrics.Enabled) {
		httpServer = telemetryServer(cfg.Telemetry.Metrics.ListenAddress, cfg.Telemetry.Metrics.Path, metricsCollector, cp)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("telemetry server: %w", err)
			}
		}()
		fmt.Printf("✓ Telemetry listening on %s (metrics at %s)\n",
			cfg.Telemetry.Metrics.ListenAddress, cfg.Telemetry.Metrics.Path)
	}

	fmt.Println("\nPress Ctrl+C to stop")
	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		stopQuietly(cp, logger)
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry server shutdown", "error", err)
		}
	}
	if err := cp.Stop(); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Println("✓ Stopped")
	return nil
}

// telemetryServer mounts the metrics handler alongside liveness,
// readiness, and version endpoints.
func telemetryServer(addr, metricsPath string, mc *metrics.Collector, cp *controlplane.ControlPlane) *http.Server {
	checker := health.New(2 * time.Second)
	checker.RegisterCheck("audit_storage", func(ctx context.Context) error {
		_, err := cp.AuditTrail().Count(ctx, &audit.Query{Limit: 1})
		return err
	})

	mux := http.NewServeMux()
	mux.Handle(metricsPath, mc.Handler())
	mux.HandleFunc("/healthz", checker.LivenessHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())
	mux.HandleFunc("/version", health.VersionHandler(Version, GitCommit, BuildDate))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func stopQuietly(cp *controlplane.ControlPlane, logger *slog.Logger) {
	if err := cp.Stop(); err != nil {
		logger.Error("stopping control plane", "error", err)
	}
}
