package config

import "time"

// Default values for configuration fields.
const (
	// Collector defaults
	DefaultCollectorTimeout = 10 * time.Second
	DefaultMaxConcurrent    = 4
	DefaultSnapshotMaxAge   = 15 * time.Minute
	DefaultGitMetaBranch    = "main"

	// Registry defaults
	DefaultCacheTTL          = 5 * time.Minute
	DefaultReconcileSchedule = "@every 10m"

	// Template defaults
	DefaultTemplateRoot     = "./templates"
	DefaultDebounceInterval = 250 * time.Millisecond

	// Audit defaults
	DefaultAuditBackend      = "sqlite"
	DefaultAuditSQLitePath   = "data/audit.db"
	DefaultAuditAsyncBuffer  = 1000
	DefaultAuditWriteTimeout = 5 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultMetricsListenAddress = "127.0.0.1:9464"
	DefaultMetricsPath          = "/metrics"
)

// ApplyDefaults applies default values to a Config struct. It sets
// defaults for any fields that have zero values. The function is
// idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Collector defaults
	if cfg.Collectors.Timeout == 0 {
		cfg.Collectors.Timeout = DefaultCollectorTimeout
	}
	if cfg.Collectors.MaxConcurrent == 0 {
		cfg.Collectors.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Collectors.SnapshotMaxAge == 0 {
		cfg.Collectors.SnapshotMaxAge = DefaultSnapshotMaxAge
	}
	if cfg.Collectors.GitMeta.Enabled == nil {
		cfg.Collectors.GitMeta.Enabled = boolPtr(true)
	}
	if cfg.Collectors.GitMeta.Branch == "" {
		cfg.Collectors.GitMeta.Branch = DefaultGitMetaBranch
	}
	if cfg.Collectors.ConfStore.Enabled == nil {
		cfg.Collectors.ConfStore.Enabled = boolPtr(true)
	}
	if cfg.Collectors.SchedFleet.Enabled == nil {
		cfg.Collectors.SchedFleet.Enabled = boolPtr(true)
	}
	if cfg.Collectors.SchedFleet.Watch == nil {
		cfg.Collectors.SchedFleet.Watch = boolPtr(true)
	}

	// Registry defaults
	if cfg.Registry.CacheTTL == 0 {
		cfg.Registry.CacheTTL = DefaultCacheTTL
	}
	if cfg.Registry.ReconcileSchedule == "" {
		cfg.Registry.ReconcileSchedule = DefaultReconcileSchedule
	}

	// Template defaults
	if cfg.Templates.Root == "" {
		cfg.Templates.Root = DefaultTemplateRoot
	}
	if cfg.Templates.Watch == nil {
		cfg.Templates.Watch = boolPtr(true)
	}
	if cfg.Templates.DebounceInterval == 0 {
		cfg.Templates.DebounceInterval = DefaultDebounceInterval
	}

	// Audit defaults
	if cfg.Audit.Enabled == nil {
		cfg.Audit.Enabled = boolPtr(true)
	}
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLitePath == "" {
		cfg.Audit.SQLitePath = DefaultAuditSQLitePath
	}
	if cfg.Audit.AsyncBuffer == 0 {
		cfg.Audit.AsyncBuffer = DefaultAuditAsyncBuffer
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditWriteTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Enabled == nil {
		cfg.Telemetry.Metrics.Enabled = boolPtr(true)
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

func boolPtr(b bool) *bool { return &b }
