package registry

import (
	"log/slog"
	"sort"
	"time"
)

// Reconciler merges source snapshots into a ServiceRegistry. It holds no
// mutable state: Reconcile is a pure function of its inputs plus the
// immutable precedence table, so concurrent reconciliations need no
// coordination.
type Reconciler struct {
	precedence PrecedenceTable
	logger     *slog.Logger
}

// NewReconciler creates a reconciler with the given precedence table. A nil
// logger falls back to slog.Default.
func NewReconciler(precedence PrecedenceTable, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		precedence: precedence,
		logger:     logger.With("component", "registry.reconciler"),
	}
}

// fieldReport is one source's contribution to one field of one service,
// after same-source deduplication.
type fieldReport struct {
	source    string
	value     FieldValue
	fetchedAt time.Time
	stale     bool
	rank      int
}

// Reconcile merges the snapshots into a registry. The merge is idempotent
// and order-independent across sources: only same-source, same-field
// duplicates are order-sensitive, and those resolve by fetch timestamp, not
// slice position.
func (r *Reconciler) Reconcile(snapshots []SourceSnapshot) ServiceRegistry {
	// Deduplicate per (service, field, source), keeping the freshest
	// report from each source.
	reports := make(map[string]map[string][]fieldReport) // service -> field -> reports
	var asOf time.Time

	for _, snap := range snapshots {
		if snap.FetchedAt.After(asOf) {
			asOf = snap.FetchedAt
		}
		for svc, facts := range snap.Services {
			for field, value := range facts {
				rank := r.precedence.Rank(field, snap.SourceID)
				if rank < 0 {
					// Not authoritative for this field; the overlap table
					// is explicit, so this is a collector bug worth noting.
					r.logger.Debug("ignoring non-authoritative field report",
						"source", snap.SourceID, "service", svc, "field", field)
					continue
				}
				if reports[svc] == nil {
					reports[svc] = make(map[string][]fieldReport)
				}
				rep := fieldReport{
					source:    snap.SourceID,
					value:     value,
					fetchedAt: snap.FetchedAt,
					stale:     snap.Stale,
					rank:      rank,
				}
				reports[svc][field] = dedupeSameSource(reports[svc][field], rep)
			}
		}
	}

	registry := ServiceRegistry{
		Services: make(map[string]*ReconciledRecord, len(reports)),
		AsOf:     asOf,
	}
	for svc, fields := range reports {
		record := &ReconciledRecord{
			Name:   svc,
			Fields: make(map[string]ReconciledField, len(fields)),
		}
		for field, reps := range fields {
			record.Fields[field] = r.resolveField(svc, field, reps)
		}
		registry.Services[svc] = record
	}
	return registry
}

// dedupeSameSource inserts rep, replacing an existing report from the same
// source if rep is fresher.
func dedupeSameSource(reps []fieldReport, rep fieldReport) []fieldReport {
	for i, existing := range reps {
		if existing.source == rep.source {
			if rep.fetchedAt.After(existing.fetchedAt) {
				reps[i] = rep
			}
			return reps
		}
	}
	return append(reps, rep)
}

// resolveField applies precedence to the reports for one field. The winner
// is the freshest known value in the earliest tier that has one; freshness
// ties break to the lexicographically smallest source id so the result is
// deterministic. A known value is never discarded in favor of Unknown: a
// field is unknown only when no source knows it.
func (r *Reconciler) resolveField(svc, field string, reps []fieldReport) ReconciledField {
	// Stable order makes the scan deterministic regardless of input order.
	sort.Slice(reps, func(i, j int) bool {
		if reps[i].rank != reps[j].rank {
			return reps[i].rank < reps[j].rank
		}
		return reps[i].source < reps[j].source
	})

	var winner *fieldReport
	provisional := false
	for tier := 0; tier < r.precedence.TierCount(field); tier++ {
		var best *fieldReport
		for i := range reps {
			rep := &reps[i]
			if rep.rank != tier || !rep.value.Known {
				continue
			}
			if best == nil || rep.fetchedAt.After(best.fetchedAt) ||
				(rep.fetchedAt.Equal(best.fetchedAt) && rep.source < best.source) {
				best = rep
			}
		}
		if best != nil {
			winner = best
			provisional = tier > 0
			break
		}
	}

	if winner == nil {
		// Every source reported Unknown (or nothing usable).
		return ReconciledField{}
	}

	// Any differing known value, in any tier, marks the field conflicted.
	conflict := false
	for i := range reps {
		rep := &reps[i]
		if rep.value.Known && rep.value.Value != winner.value.Value {
			conflict = true
			break
		}
	}
	if conflict {
		r.logger.Warn("field conflict",
			"service", svc, "field", field,
			"winner", winner.source, "value", winner.value.Value)
	}

	return ReconciledField{
		Value:       winner.value.Value,
		Known:       true,
		Source:      winner.source,
		FetchedAt:   winner.fetchedAt,
		Provisional: provisional,
		Conflict:    conflict,
		Stale:       winner.stale,
	}
}
