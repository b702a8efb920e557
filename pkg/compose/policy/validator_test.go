package policy

import (
	"testing"
)

// compliantArtifacts returns a minimal artifact set that passes every
// mandatory rule.
func compliantArtifacts() map[string]string {
	return map[string]string{
		TLSArtifactPath:        "tls_enabled: true\nmin_version: \"1.3\"\n",
		MonitoringArtifactPath: "monitor: billing\nscrape_interval: 15s\n",
		ServiceArtifactPath:    "name: billing\nlanguage: go\nruntime_version: \"1.25\"\n",
	}
}

func violationIDs(violations []Violation) map[string]int {
	ids := make(map[string]int)
	for _, v := range violations {
		ids[v.RuleID]++
	}
	return ids
}

func TestValidator_CompliantSetPasses(t *testing.T) {
	v := NewMandatoryValidator(nil)
	if violations := v.Validate(compliantArtifacts()); len(violations) != 0 {
		t.Errorf("compliant set must pass, got %v", violations)
	}
}

func TestValidator_MissingTLSFile(t *testing.T) {
	artifacts := compliantArtifacts()
	delete(artifacts, TLSArtifactPath)

	violations := NewMandatoryValidator(nil).Validate(artifacts)
	if violationIDs(violations)[RuleTLSRequired] == 0 {
		t.Errorf("want %s violation, got %v", RuleTLSRequired, violations)
	}
}

func TestValidator_TLSDisabledAtAnyLayer(t *testing.T) {
	artifacts := compliantArtifacts()
	// TLS file exists, but an unrelated artifact disables TLS.
	artifacts["overrides/app.conf"] = "tls_enabled: false\n"

	violations := NewMandatoryValidator(nil).Validate(artifacts)
	found := false
	for _, v := range violations {
		if v.RuleID == RuleTLSRequired && len(v.Paths) == 1 && v.Paths[0] == "overrides/app.conf" {
			found = true
		}
	}
	if !found {
		t.Errorf("disabling TLS anywhere must violate %s naming the offending path, got %v",
			RuleTLSRequired, violations)
	}
}

func TestValidator_MissingMonitoring(t *testing.T) {
	artifacts := compliantArtifacts()
	artifacts[MonitoringArtifactPath] = "   \n"

	violations := NewMandatoryValidator(nil).Validate(artifacts)
	if violationIDs(violations)[RuleMonitoringRequired] == 0 {
		t.Errorf("want %s violation, got %v", RuleMonitoringRequired, violations)
	}
}

func TestValidator_RuntimeAllowList(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantFail bool
	}{
		{"allowed go runtime", "language: go\nruntime_version: \"1.25\"\n", false},
		{"disallowed go runtime", "language: go\nruntime_version: \"1.19\"\n", true},
		{"open-ended range rejected", "language: go\nruntime_version: \">=1.24\"\n", true},
		{"unknown language", "language: cobol\nruntime_version: \"85\"\n", true},
		{"allowed java runtime", "language: java\nruntime_version: \"21\"\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifacts := compliantArtifacts()
			artifacts[ServiceArtifactPath] = tt.manifest

			violations := NewMandatoryValidator(nil).Validate(artifacts)
			failed := violationIDs(violations)[RuleRuntimeAllowList] > 0
			if failed != tt.wantFail {
				t.Errorf("runtime_allowlist failed=%v, want %v (violations %v)", failed, tt.wantFail, violations)
			}
		})
	}
}

func TestValidator_CollectsAllViolations(t *testing.T) {
	// Everything wrong at once: the validator must report every failure,
	// not stop at the first.
	artifacts := map[string]string{
		"app.conf": "tls_enabled: false\n",
	}

	violations := NewMandatoryValidator(nil).Validate(artifacts)
	ids := violationIDs(violations)
	for _, want := range []string{RuleTLSRequired, RuleMonitoringRequired, RuleRuntimeAllowList} {
		if ids[want] == 0 {
			t.Errorf("missing %s in combined violation list %v", want, violations)
		}
	}
	if len(violations) < 4 {
		// tls_required twice: missing file and disabled flag.
		t.Errorf("want the complete list (>=4), got %d: %v", len(violations), violations)
	}
}
