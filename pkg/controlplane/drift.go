package controlplane

import (
	"sort"
	"time"
)

// FieldDrift is one field on which the backing systems disagree.
type FieldDrift struct {
	Service string
	Field   string

	// Claims holds every source's value for the field, ordered by
	// source id.
	Claims []SourceClaim
}

// SourceClaim is one source's value for a drifting field.
type SourceClaim struct {
	Source    string
	Value     string
	FetchedAt time.Time
}

// DriftReport summarizes cross-source disagreement observed during the
// last reconciliation.
type DriftReport struct {
	GeneratedAt time.Time
	Fields      []FieldDrift
}

// Drift builds a report from the snapshots of the last reconcile cycle.
// A field drifts when at least two sources report differing known
// values for it. An empty report before the first reconcile is not an
// error.
func (cp *ControlPlane) Drift() DriftReport {
	cp.mu.Lock()
	snapshots := cp.lastSnapshots
	cp.mu.Unlock()

	report := DriftReport{GeneratedAt: time.Now()}

	type key struct{ service, field string }
	claims := make(map[key][]SourceClaim)
	for _, snap := range snapshots {
		for svc, facts := range snap.Services {
			for field, fv := range facts {
				if !fv.Known {
					continue
				}
				k := key{svc, field}
				claims[k] = append(claims[k], SourceClaim{
					Source:    snap.SourceID,
					Value:     fv.Value,
					FetchedAt: snap.FetchedAt,
				})
			}
		}
	}

	for k, cs := range claims {
		if !disagree(cs) {
			continue
		}
		sort.Slice(cs, func(i, j int) bool { return cs[i].Source < cs[j].Source })
		report.Fields = append(report.Fields, FieldDrift{
			Service: k.service,
			Field:   k.field,
			Claims:  cs,
		})
	}
	sort.Slice(report.Fields, func(i, j int) bool {
		if report.Fields[i].Service != report.Fields[j].Service {
			return report.Fields[i].Service < report.Fields[j].Service
		}
		return report.Fields[i].Field < report.Fields[j].Field
	})
	return report
}

func disagree(claims []SourceClaim) bool {
	for i := 1; i < len(claims); i++ {
		if claims[i].Value != claims[0].Value {
			return true
		}
	}
	return false
}
