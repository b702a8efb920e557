package main

import (
	"fmt"
	"log/slog"

	"mercator-hq/atlas/pkg/cli"
	"mercator-hq/atlas/pkg/collector"
	"mercator-hq/atlas/pkg/collector/confstore"
	"mercator-hq/atlas/pkg/collector/gitmeta"
	"mercator-hq/atlas/pkg/collector/schedfleet"
	"mercator-hq/atlas/pkg/config"
	"mercator-hq/atlas/pkg/telemetry/logging"
)

// loadConfig reads the configured file and applies environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg, nil
}

// buildLogger constructs the process logger from the telemetry section,
// with --verbose forcing debug level.
func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Telemetry.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:     level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return logger, nil
}

func enabled(p *bool) bool { return p == nil || *p }

// buildCollectors constructs one collector per enabled backing system.
func buildCollectors(cfg *config.Config, logger *slog.Logger) ([]collector.Collector, error) {
	var collectors []collector.Collector

	if enabled(cfg.Collectors.GitMeta.Enabled) {
		c, err := gitmeta.New(gitmeta.Config{
			Repository: cfg.Collectors.GitMeta.Repository,
			Branch:     cfg.Collectors.GitMeta.Branch,
			LocalPath:  cfg.Collectors.GitMeta.LocalPath,
			Token:      cfg.Collectors.GitMeta.Token,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("building gitmeta collector: %w", err)
		}
		collectors = append(collectors, c)
	}

	if enabled(cfg.Collectors.ConfStore.Enabled) {
		c, err := confstore.New(confstore.Config{
			BaseURL: cfg.Collectors.ConfStore.BaseURL,
			Token:   cfg.Collectors.ConfStore.Token,
			Timeout: cfg.Collectors.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("building confstore collector: %w", err)
		}
		collectors = append(collectors, c)
	}

	if enabled(cfg.Collectors.SchedFleet.Enabled) {
		c, err := schedfleet.New(schedfleet.Config{
			BaseURL: cfg.Collectors.SchedFleet.BaseURL,
			Token:   cfg.Collectors.SchedFleet.Token,
			Timeout: cfg.Collectors.Timeout,
			Watch:   enabled(cfg.Collectors.SchedFleet.Watch),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("building schedfleet collector: %w", err)
		}
		collectors = append(collectors, c)
	}

	return collectors, nil
}
