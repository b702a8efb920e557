package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the field (e.g. "registry.cache_ttl").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. All field errors are collected and returned together.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a
// ValidationError if any rule fails. It returns nil when the
// configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateCollectors(&cfg.Collectors)...)
	errs = append(errs, validateRegistry(&cfg.Registry)...)
	errs = append(errs, validateTemplates(&cfg.Templates)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// isEnabled treats an unset enable flag as on; defaults opt collectors in.
func isEnabled(p *bool) bool { return p == nil || *p }

func validateCollectors(cfg *CollectorsConfig) []FieldError {
	var errs []FieldError

	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{"collectors.timeout", "must be positive"})
	}
	if cfg.MaxConcurrent <= 0 {
		errs = append(errs, FieldError{"collectors.max_concurrent", "must be positive"})
	}
	if cfg.SnapshotMaxAge < 0 {
		errs = append(errs, FieldError{"collectors.snapshot_max_age", "must not be negative"})
	}
	if isEnabled(cfg.GitMeta.Enabled) && cfg.GitMeta.Repository == "" {
		errs = append(errs, FieldError{"collectors.gitmeta.repository", "required when the collector is enabled"})
	}
	if isEnabled(cfg.ConfStore.Enabled) {
		errs = append(errs, validateBaseURL("collectors.confstore.base_url", cfg.ConfStore.BaseURL)...)
	}
	if isEnabled(cfg.SchedFleet.Enabled) {
		errs = append(errs, validateBaseURL("collectors.schedfleet.base_url", cfg.SchedFleet.BaseURL)...)
	}
	return errs
}

func validateBaseURL(field, value string) []FieldError {
	if value == "" {
		return []FieldError{{field, "required when the collector is enabled"}}
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return []FieldError{{field, fmt.Sprintf("invalid URL %q", value)}}
	}
	return nil
}

func validateRegistry(cfg *RegistryConfig) []FieldError {
	var errs []FieldError

	if cfg.CacheTTL < 0 {
		errs = append(errs, FieldError{"registry.cache_ttl", "must not be negative"})
	}
	if cfg.ReconcileSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ReconcileSchedule); err != nil {
			errs = append(errs, FieldError{"registry.reconcile_schedule",
				fmt.Sprintf("invalid cron expression %q: %v", cfg.ReconcileSchedule, err)})
		}
	}
	return errs
}

func validateTemplates(cfg *TemplatesConfig) []FieldError {
	var errs []FieldError

	if cfg.Root == "" {
		errs = append(errs, FieldError{"templates.root", "required"})
	}
	if cfg.DebounceInterval <= 0 {
		errs = append(errs, FieldError{"templates.debounce_interval", "must be positive"})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{"audit.backend",
			fmt.Sprintf("unknown backend %q, want \"memory\" or \"sqlite\"", cfg.Backend)})
	}
	if cfg.Backend == "sqlite" && cfg.SQLitePath == "" {
		errs = append(errs, FieldError{"audit.sqlite_path", "required for the sqlite backend"})
	}
	if cfg.AsyncBuffer <= 0 {
		errs = append(errs, FieldError{"audit.async_buffer", "must be positive"})
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, FieldError{"audit.write_timeout", "must be positive"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			fmt.Sprintf("unknown format %q, want \"json\" or \"text\"", cfg.Logging.Format)})
	}
	if isEnabled(cfg.Metrics.Enabled) && cfg.Metrics.ListenAddress == "" {
		errs = append(errs, FieldError{"telemetry.metrics.listen_address", "required when metrics are enabled"})
	}
	return errs
}
