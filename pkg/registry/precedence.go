package registry

// Source ids for the three backing systems the platform reconciles across.
const (
	SourceGitMeta    = "gitmeta"    // source-control metadata
	SourceConfStore  = "confstore"  // hierarchical configuration store
	SourceSchedFleet = "schedfleet" // container scheduler
)

// PrecedenceTable is the static mapping from field to ordered tiers of
// authoritative sources. Sources sharing a tier are equal-precedence:
// disagreement between them is a conflict resolved by freshness. Sources
// in an earlier tier always beat later tiers; a later-tier value is only
// used (and marked provisional) when every earlier tier is unknown.
//
// The table is fixed per deployment and passed into the Reconciler at
// construction; it is never mutated afterwards.
type PrecedenceTable struct {
	tiers map[string][][]string
}

// NewPrecedenceTable builds a table from a field → tier list mapping. The
// mapping is copied; the caller's slices are not retained.
func NewPrecedenceTable(tiers map[string][][]string) PrecedenceTable {
	copied := make(map[string][][]string, len(tiers))
	for field, fieldTiers := range tiers {
		ct := make([][]string, len(fieldTiers))
		for i, tier := range fieldTiers {
			ct[i] = append([]string(nil), tier...)
		}
		copied[field] = ct
	}
	return PrecedenceTable{tiers: copied}
}

// DefaultPrecedenceTable returns the platform's field authority table.
// Overlap across sources is deliberate and explicit:
//
//   - runtime_version: the scheduler reports what actually runs, the
//     repo manifest reports what was declared. The scheduler wins; a
//     disagreement is flagged for drift audit.
//   - owner: the config store and the repo manifest are equal authorities,
//     resolved by freshness.
//   - tier, monitoring, tls_profile: the config store owns operational
//     configuration; the repo manifest is a declared fallback.
func DefaultPrecedenceTable() PrecedenceTable {
	return NewPrecedenceTable(map[string][][]string{
		FieldOwner:          {{SourceConfStore, SourceGitMeta}},
		FieldCreatedAt:      {{SourceGitMeta}},
		FieldRepoURL:        {{SourceGitMeta}},
		FieldLanguage:       {{SourceGitMeta}},
		FieldFramework:      {{SourceGitMeta}},
		FieldRuntimeVersion: {{SourceSchedFleet}, {SourceGitMeta}},
		FieldReplicas:       {{SourceSchedFleet}},
		FieldStatus:         {{SourceSchedFleet}},
		FieldTier:           {{SourceConfStore}, {SourceGitMeta}},
		FieldMonitoring:     {{SourceConfStore}},
		FieldTLSProfile:     {{SourceConfStore}},
	})
}

// Rank returns the tier index of a source for a field, or -1 when the
// source is not authoritative for that field.
func (t PrecedenceTable) Rank(field, source string) int {
	for i, tier := range t.tiers[field] {
		for _, s := range tier {
			if s == source {
				return i
			}
		}
	}
	return -1
}

// TierCount returns the number of tiers defined for a field.
func (t PrecedenceTable) TierCount(field string) int {
	return len(t.tiers[field])
}

// Knows reports whether the table defines any authority for the field.
func (t PrecedenceTable) Knows(field string) bool {
	return len(t.tiers[field]) > 0
}
