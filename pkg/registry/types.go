package registry

import (
	"sort"
	"time"
)

// Well-known field names reported by collectors. The precedence table is
// keyed by these; a collector reporting a field outside its documented set
// is ignored by the reconciler.
const (
	FieldOwner          = "owner"
	FieldCreatedAt      = "created_at"
	FieldRepoURL        = "repo_url"
	FieldLanguage       = "language"
	FieldFramework      = "framework"
	FieldRuntimeVersion = "runtime_version"
	FieldReplicas       = "replicas"
	FieldStatus         = "status"
	FieldTier           = "tier"
	FieldMonitoring     = "monitoring"
	FieldTLSProfile     = "tls_profile"
)

// FieldValue is one collector's report for one field. Known=false means
// the source explicitly reported the field as unknown, which is distinct
// from not reporting the field at all.
type FieldValue struct {
	Value string
	Known bool
}

// Known constructs a known field value.
func Known(v string) FieldValue { return FieldValue{Value: v, Known: true} }

// Unknown constructs an explicitly-unknown field value.
func Unknown() FieldValue { return FieldValue{} }

// ServiceFacts is one source's partial field map for a single service.
type ServiceFacts map[string]FieldValue

// SourceSnapshot is one collector's partial view of the fleet, taken at a
// single point in time. Snapshots are created per reconciliation cycle and
// discarded after the merge.
type SourceSnapshot struct {
	// SourceID identifies the collector ("gitmeta", "confstore", ...).
	SourceID string

	// FetchedAt is when the collector produced the snapshot. It breaks
	// same-source duplicates and same-tier conflicts.
	FetchedAt time.Time

	// Stale marks a snapshot served from the collector's last-good cache
	// after an auth failure, rather than fetched fresh.
	Stale bool

	// Services maps service name to the facts this source reports for it.
	Services map[string]ServiceFacts
}

// ReconciledField is the merged result for one field of one service: the
// winning value, where it came from, and how contested it was.
type ReconciledField struct {
	Value string
	Known bool

	// Source is the id of the winning source; empty when Known is false.
	Source string

	// FetchedAt is the winning snapshot's fetch time.
	FetchedAt time.Time

	// Provisional marks a value taken from a lower-precedence source
	// because every higher tier reported the field unknown or not at all.
	Provisional bool

	// Conflict marks a field where at least two sources reported
	// different known values. The winning value is still usable;
	// the flag exists for audit.
	Conflict bool

	// Stale marks a value that came from a stale (cached) snapshot.
	Stale bool
}

// ReconciledRecord is the merged facts for one service. Records are
// derived values, regenerated on every reconciliation; callers must treat
// them as immutable.
type ReconciledRecord struct {
	Name   string
	Fields map[string]ReconciledField
}

// Field returns the reconciled field, or an unknown field if no source
// reported it.
func (r *ReconciledRecord) Field(name string) ReconciledField {
	if f, ok := r.Fields[name]; ok {
		return f
	}
	return ReconciledField{}
}

// Conflicts returns the names of conflicted fields in sorted order.
func (r *ReconciledRecord) Conflicts() []string {
	var out []string
	for name, f := range r.Fields {
		if f.Conflict {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ServiceRegistry is the reconciled view of all known services. It is
// rebuilt on each reconciliation and never persisted as authoritative.
type ServiceRegistry struct {
	Services map[string]*ReconciledRecord

	// AsOf is the newest snapshot fetch time that contributed to the
	// registry. Derived from inputs so that identical inputs produce an
	// identical registry.
	AsOf time.Time
}

// Names returns all service names in sorted order.
func (reg *ServiceRegistry) Names() []string {
	names := make([]string, 0, len(reg.Services))
	for name := range reg.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the record for a service, or nil if unknown.
func (reg *ServiceRegistry) Get(name string) *ReconciledRecord {
	return reg.Services[name]
}
