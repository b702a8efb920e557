package audit

import (
	"context"
	"time"
)

// Kind classifies an audit record.
type Kind string

const (
	// KindConflict records a field-level disagreement between backing
	// systems observed during reconciliation.
	KindConflict Kind = "conflict"

	// KindComposition records the outcome of one composition request.
	KindComposition Kind = "composition"
)

// Outcome is the terminal state of a recorded operation.
type Outcome string

const (
	// OutcomeApplied means the operation completed and its result stands.
	OutcomeApplied Outcome = "applied"

	// OutcomeRejected means policy validation refused the result.
	OutcomeRejected Outcome = "rejected"

	// OutcomeFailed means the operation errored before producing a result.
	OutcomeFailed Outcome = "failed"
)

// Record is one audit trail entry. Conflict records populate the field
// section, composition records the composition section; both carry the
// common identity fields.
type Record struct {
	// Identity
	ID           string    `json:"id"` // UUID v4
	Kind         Kind      `json:"kind"`
	RecordedTime time.Time `json:"recorded_time"`
	Service      string    `json:"service"`

	// Conflict section
	Field        string           `json:"field,omitempty"`
	ChosenValue  string           `json:"chosen_value,omitempty"`
	ChosenSource string           `json:"chosen_source,omitempty"`
	Competing    []CompetingValue `json:"competing,omitempty"`

	// Composition section
	Mode          string            `json:"mode,omitempty"`
	Outcome       Outcome           `json:"outcome,omitempty"`
	ArtifactCount int               `json:"artifact_count,omitempty"`
	Violations    []ViolationRecord `json:"violations,omitempty"`
	Bindings      []BindingRecord   `json:"bindings,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// CompetingValue is one source's claim in a recorded conflict.
type CompetingValue struct {
	Source    string    `json:"source"`
	Value     string    `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ViolationRecord is the stored form of one policy violation.
type ViolationRecord struct {
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`
}

// BindingRecord is the stored provenance of one template variable.
type BindingRecord struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Layer string `json:"layer"`
}

// Query filters audit records. Zero-value fields match everything.
type Query struct {
	// Kinds restricts the record kinds returned; empty means all.
	Kinds []Kind

	// Service restricts to one service name.
	Service string

	// Since and Until bound RecordedTime. Zero values are open ends.
	Since time.Time
	Until time.Time

	// Limit caps the result size; zero means the backend default.
	Limit int

	// Offset skips results for pagination.
	Offset int
}

// Matches reports whether a record satisfies the query's filters,
// ignoring pagination.
func (q *Query) Matches(r *Record) bool {
	if len(q.Kinds) > 0 {
		found := false
		for _, k := range q.Kinds {
			if r.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Service != "" && r.Service != q.Service {
		return false
	}
	if !q.Since.IsZero() && r.RecordedTime.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && r.RecordedTime.After(q.Until) {
		return false
	}
	return true
}

// Storage is the audit persistence backend.
type Storage interface {
	// Store persists one record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the filters, newest first.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, query *Query) (int, error)

	// Close releases the backend's resources.
	Close() error
}
