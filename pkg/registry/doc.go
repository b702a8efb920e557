// Package registry merges partial snapshots from independently-operated
// backing systems into one reconciled view of the service fleet.
//
// The reconciler is a pure function over its inputs: given the same set of
// snapshots it always produces the same registry, regardless of snapshot
// order across sources. It never becomes a system of record; the registry
// is a derived view, rebuilt on demand, with an in-memory per-service TTL
// cache as the only shared mutable state.
//
// Field values are resolved by a static per-field precedence table. When
// the highest-precedence source for a field does not know the value but a
// lower-precedence one does, the lower value is used and marked
// provisional. When sources at the same precedence tier disagree, the
// freshest value wins, the tie beyond that goes to the lexicographically
// smallest source id, and the field is flagged as a conflict for audit.
// A field disagreement across tiers also flags a conflict; precedence
// picks the value, the flag preserves the disagreement.
package registry
