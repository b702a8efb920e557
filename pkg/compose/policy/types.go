package policy

import "fmt"

// Severity weighs a violation. Every mandatory rule reports errors; a
// warning severity exists for advisory rules layered on by deployments.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule is one mandatory invariant: a predicate over the full composed
// artifact set. Rules are static and versioned with the policy set; they
// hold no per-request state and must be safe for concurrent use.
type Rule interface {
	// ID returns the stable rule id used in violation reports.
	ID() string

	// Severity returns the rule's severity.
	Severity() Severity

	// Check evaluates the rule against the complete artifact set and
	// returns its violations, nil when the set complies.
	Check(artifacts map[string]string) []Violation
}

// Violation is one failed rule instance.
type Violation struct {
	// RuleID names the failed rule.
	RuleID string

	// Message explains the failure in terms the service owner can act on.
	Message string

	// Paths lists the offending artifact paths, when the failure is
	// attributable to specific files.
	Paths []string

	// Severity is the failing rule's severity.
	Severity Severity
}

// String renders the violation for logs and CLI output.
func (v Violation) String() string {
	if len(v.Paths) > 0 {
		return fmt.Sprintf("[%s] %s (%v)", v.RuleID, v.Message, v.Paths)
	}
	return fmt.Sprintf("[%s] %s", v.RuleID, v.Message)
}
