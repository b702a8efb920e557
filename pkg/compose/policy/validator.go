package policy

import "log/slog"

// Validator runs a fixed rule set over composed artifact sets.
type Validator struct {
	rules  []Rule
	logger *slog.Logger
}

// NewValidator creates a validator over an explicit rule set.
func NewValidator(rules []Rule, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		rules:  rules,
		logger: logger.With("component", "policy.validator"),
	}
}

// NewMandatoryValidator creates a validator with the platform's mandatory
// rule set: TLS, monitoring, and the runtime allow-list.
func NewMandatoryValidator(logger *slog.Logger) *Validator {
	return NewValidator([]Rule{TLSRule{}, MonitoringRule{}, RuntimeRule{}}, logger)
}

// Validate runs every rule and returns the complete list of violations.
// An empty result means the artifact set complies with every rule.
func (v *Validator) Validate(artifacts map[string]string) []Violation {
	var violations []Violation
	for _, rule := range v.rules {
		found := rule.Check(artifacts)
		if len(found) > 0 {
			v.logger.Warn("policy rule failed",
				"rule", rule.ID(), "violations", len(found))
		}
		violations = append(violations, found...)
	}
	return violations
}
