package policy

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/atlas/pkg/compose/service"
)

// Well-known rule ids.
const (
	RuleTLSRequired        = "tls_required"
	RuleMonitoringRequired = "monitoring_required"
	RuleRuntimeAllowList   = "runtime_allowlist"
)

// Artifact paths the mandatory rules anchor on. The platform layer emits
// these; expert payloads must carry them too (or an equivalent the rules
// accept) to pass validation.
const (
	TLSArtifactPath        = "platform/tls.conf"
	MonitoringArtifactPath = "observability/monitoring.yaml"
	ServiceArtifactPath    = "service.yaml"
)

// TLSRule enforces encryption in transit: the TLS configuration artifact
// must be present and no artifact at any layer may disable TLS.
type TLSRule struct{}

// ID implements Rule.
func (TLSRule) ID() string { return RuleTLSRequired }

// Severity implements Rule.
func (TLSRule) Severity() Severity { return SeverityError }

// Check implements Rule.
func (r TLSRule) Check(artifacts map[string]string) []Violation {
	var violations []Violation

	content, ok := artifacts[TLSArtifactPath]
	if !ok || strings.TrimSpace(content) == "" {
		violations = append(violations, Violation{
			RuleID:   RuleTLSRequired,
			Message:  fmt.Sprintf("encryption-in-transit configuration %q is missing", TLSArtifactPath),
			Severity: SeverityError,
		})
	}

	// TLS must not be disableable at any layer: scan the whole set.
	var disabling []string
	for path, content := range artifacts {
		if strings.Contains(content, "tls_enabled: false") {
			disabling = append(disabling, path)
		}
	}
	if len(disabling) > 0 {
		sort.Strings(disabling)
		violations = append(violations, Violation{
			RuleID:   RuleTLSRequired,
			Message:  "encryption in transit is disabled",
			Paths:    disabling,
			Severity: SeverityError,
		})
	}
	return violations
}

// MonitoringRule enforces the presence of observability configuration.
type MonitoringRule struct{}

// ID implements Rule.
func (MonitoringRule) ID() string { return RuleMonitoringRequired }

// Severity implements Rule.
func (MonitoringRule) Severity() Severity { return SeverityError }

// Check implements Rule.
func (r MonitoringRule) Check(artifacts map[string]string) []Violation {
	if content, ok := artifacts[MonitoringArtifactPath]; ok && strings.TrimSpace(content) != "" {
		return nil
	}
	return []Violation{{
		RuleID:   RuleMonitoringRequired,
		Message:  fmt.Sprintf("monitoring configuration %q is missing", MonitoringArtifactPath),
		Severity: SeverityError,
	}}
}

// RuntimeRule enforces the runtime version allow-list: the composed
// service manifest must declare a language and a runtime version that the
// language's static policy admits.
type RuntimeRule struct{}

// ID implements Rule.
func (RuntimeRule) ID() string { return RuleRuntimeAllowList }

// Severity implements Rule.
func (RuntimeRule) Severity() Severity { return SeverityError }

// serviceManifest is the slice of the composed service.yaml the rule
// reads.
type serviceManifest struct {
	Language       string `yaml:"language"`
	RuntimeVersion string `yaml:"runtime_version"`
}

// Check implements Rule.
func (r RuntimeRule) Check(artifacts map[string]string) []Violation {
	content, ok := artifacts[ServiceArtifactPath]
	if !ok {
		return []Violation{{
			RuleID:   RuleRuntimeAllowList,
			Message:  fmt.Sprintf("service manifest %q is missing, runtime version cannot be verified", ServiceArtifactPath),
			Severity: SeverityError,
		}}
	}

	var m serviceManifest
	if err := yaml.Unmarshal([]byte(content), &m); err != nil {
		return []Violation{{
			RuleID:   RuleRuntimeAllowList,
			Message:  fmt.Sprintf("service manifest is unparseable: %v", err),
			Paths:    []string{ServiceArtifactPath},
			Severity: SeverityError,
		}}
	}

	lang, err := service.ParseLanguage(m.Language)
	if err != nil {
		return []Violation{{
			RuleID:   RuleRuntimeAllowList,
			Message:  fmt.Sprintf("service manifest declares unknown language %q", m.Language),
			Paths:    []string{ServiceArtifactPath},
			Severity: SeverityError,
		}}
	}
	langPolicy, ok := ForLanguage(lang)
	if !ok {
		return []Violation{{
			RuleID:   RuleRuntimeAllowList,
			Message:  fmt.Sprintf("no language policy registered for %q", m.Language),
			Paths:    []string{ServiceArtifactPath},
			Severity: SeverityError,
		}}
	}
	if !langPolicy.Allows(m.RuntimeVersion) {
		return []Violation{{
			RuleID: RuleRuntimeAllowList,
			Message: fmt.Sprintf("runtime version %q is not in the %s allow-list %v",
				m.RuntimeVersion, m.Language, langPolicy.AllowedRuntimes),
			Paths:    []string{ServiceArtifactPath},
			Severity: SeverityError,
		}}
	}
	return nil
}
