package config

import "time"

// Config is the root configuration structure for the Atlas control
// plane. It contains all configuration sections: the source collectors,
// the registry, the template composition pipeline, the audit trail, and
// telemetry.
type Config struct {
	// Collectors contains configuration for the backing-system
	// collectors and the fan-out runner that drives them.
	Collectors CollectorsConfig `yaml:"collectors"`

	// Registry contains configuration for the reconciled service
	// registry: cache lifetime and the background reconcile schedule.
	Registry RegistryConfig `yaml:"registry"`

	// Templates contains configuration for the template layer library
	// and the composition pipeline.
	Templates TemplatesConfig `yaml:"templates"`

	// Audit contains configuration for the audit trail.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CollectorsConfig configures the backing-system collectors.
type CollectorsConfig struct {
	// GitMeta configures the service catalog repository collector.
	GitMeta GitMetaConfig `yaml:"gitmeta"`

	// ConfStore configures the configuration store collector.
	ConfStore ConfStoreConfig `yaml:"confstore"`

	// SchedFleet configures the container scheduler collector.
	SchedFleet SchedFleetConfig `yaml:"schedfleet"`

	// Timeout is the per-collector fetch timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// MaxConcurrent bounds the collector fan-out.
	// Default: 4
	MaxConcurrent int `yaml:"max_concurrent"`

	// SnapshotMaxAge is how long a cached snapshot may substitute for a
	// source that rejects our credentials.
	// Default: 15m
	SnapshotMaxAge time.Duration `yaml:"snapshot_max_age"`
}

// GitMetaConfig configures the catalog repository collector.
type GitMetaConfig struct {
	// Enabled controls whether the collector runs.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Repository is the catalog repository URL.
	Repository string `yaml:"repository"`

	// Branch is the branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// LocalPath is where the catalog is cloned. Empty means a directory
	// under the OS temp dir.
	LocalPath string `yaml:"local_path"`

	// Token is an optional bearer token for HTTPS remotes.
	Token string `yaml:"token"`
}

// ConfStoreConfig configures the configuration store collector.
type ConfStoreConfig struct {
	// Enabled controls whether the collector runs.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// BaseURL is the store's API base, e.g. "https://confstore.internal".
	BaseURL string `yaml:"base_url"`

	// Token is the bearer token presented to the store.
	Token string `yaml:"token"`
}

// SchedFleetConfig configures the container scheduler collector.
type SchedFleetConfig struct {
	// Enabled controls whether the collector runs.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// BaseURL is the scheduler API base, e.g. "https://sched.internal".
	BaseURL string `yaml:"base_url"`

	// Token is the bearer token presented to the scheduler.
	Token string `yaml:"token"`

	// Watch enables the scheduler's change-signal stream, used to
	// invalidate per-service registry cache entries.
	// Default: true
	Watch *bool `yaml:"watch"`
}

// RegistryConfig configures the reconciled service registry.
type RegistryConfig struct {
	// CacheTTL is how long a reconciled record may be served from cache
	// before the next read triggers a fresh reconciliation. Zero
	// disables caching.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// ReconcileSchedule is a cron expression for background full-fleet
	// reconciliation. Empty disables the schedule.
	// Default: "@every 10m"
	ReconcileSchedule string `yaml:"reconcile_schedule"`
}

// TemplatesConfig configures the template layer library and pipeline.
type TemplatesConfig struct {
	// Root is the template library directory, one subdirectory per
	// layer.
	Root string `yaml:"root"`

	// Watch reloads the library when template files change on disk.
	// Default: true
	Watch *bool `yaml:"watch"`

	// DebounceInterval coalesces bursts of file events into one reload.
	// Default: 250ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// ExemptionKey verifies signed mandatory-file exemptions in expert
	// mode. Empty rejects all exemptions.
	ExemptionKey string `yaml:"exemption_key"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Enabled controls audit recording.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	// Default: "data/audit.db"
	SQLitePath string `yaml:"sqlite_path"`

	// AsyncBuffer is the size of the recorder's write buffer.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds one storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// TelemetryConfig configures logging and metrics.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format selects the handler: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled controls whether the metrics server runs.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// ListenAddress is the metrics server's address.
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// Path is the scrape path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
