package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified
// path. It applies default values, validates the configuration, and
// returns any errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow
// the naming convention ATLAS_SECTION_FIELD
// (e.g. ATLAS_REGISTRY_CACHE_TTL) and always take precedence over
// file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies ATLAS_SECTION_FIELD environment variable
// overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Collector overrides
	envString("ATLAS_COLLECTORS_GITMETA_REPOSITORY", &cfg.Collectors.GitMeta.Repository)
	envString("ATLAS_COLLECTORS_GITMETA_BRANCH", &cfg.Collectors.GitMeta.Branch)
	envString("ATLAS_COLLECTORS_GITMETA_LOCAL_PATH", &cfg.Collectors.GitMeta.LocalPath)
	envString("ATLAS_COLLECTORS_GITMETA_TOKEN", &cfg.Collectors.GitMeta.Token)
	envBool("ATLAS_COLLECTORS_GITMETA_ENABLED", &cfg.Collectors.GitMeta.Enabled)

	envString("ATLAS_COLLECTORS_CONFSTORE_BASE_URL", &cfg.Collectors.ConfStore.BaseURL)
	envString("ATLAS_COLLECTORS_CONFSTORE_TOKEN", &cfg.Collectors.ConfStore.Token)
	envBool("ATLAS_COLLECTORS_CONFSTORE_ENABLED", &cfg.Collectors.ConfStore.Enabled)

	envString("ATLAS_COLLECTORS_SCHEDFLEET_BASE_URL", &cfg.Collectors.SchedFleet.BaseURL)
	envString("ATLAS_COLLECTORS_SCHEDFLEET_TOKEN", &cfg.Collectors.SchedFleet.Token)
	envBool("ATLAS_COLLECTORS_SCHEDFLEET_ENABLED", &cfg.Collectors.SchedFleet.Enabled)
	envBool("ATLAS_COLLECTORS_SCHEDFLEET_WATCH", &cfg.Collectors.SchedFleet.Watch)

	envDuration("ATLAS_COLLECTORS_TIMEOUT", &cfg.Collectors.Timeout)
	envInt("ATLAS_COLLECTORS_MAX_CONCURRENT", &cfg.Collectors.MaxConcurrent)
	envDuration("ATLAS_COLLECTORS_SNAPSHOT_MAX_AGE", &cfg.Collectors.SnapshotMaxAge)

	// Registry overrides
	envDuration("ATLAS_REGISTRY_CACHE_TTL", &cfg.Registry.CacheTTL)
	envString("ATLAS_REGISTRY_RECONCILE_SCHEDULE", &cfg.Registry.ReconcileSchedule)

	// Template overrides
	envString("ATLAS_TEMPLATES_ROOT", &cfg.Templates.Root)
	envBool("ATLAS_TEMPLATES_WATCH", &cfg.Templates.Watch)
	envDuration("ATLAS_TEMPLATES_DEBOUNCE_INTERVAL", &cfg.Templates.DebounceInterval)
	envString("ATLAS_TEMPLATES_EXEMPTION_KEY", &cfg.Templates.ExemptionKey)

	// Audit overrides
	envBool("ATLAS_AUDIT_ENABLED", &cfg.Audit.Enabled)
	envString("ATLAS_AUDIT_BACKEND", &cfg.Audit.Backend)
	envString("ATLAS_AUDIT_SQLITE_PATH", &cfg.Audit.SQLitePath)
	envInt("ATLAS_AUDIT_ASYNC_BUFFER", &cfg.Audit.AsyncBuffer)
	envDuration("ATLAS_AUDIT_WRITE_TIMEOUT", &cfg.Audit.WriteTimeout)

	// Telemetry overrides
	envString("ATLAS_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("ATLAS_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("ATLAS_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("ATLAS_TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	envString("ATLAS_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
}

func envString(key string, target *string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

func envInt(key string, target *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*target = i
		}
	}
}

func envDuration(key string, target *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}

func envBool(key string, target **bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*target = &b
		}
	}
}
