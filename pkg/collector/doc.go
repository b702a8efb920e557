// Package collector defines the source collector contract and the runner
// that fans out over all configured collectors for a reconciliation cycle.
//
// A collector is an adapter over one backing system. Each collector is
// authoritative for a documented, mostly-disjoint subset of service fields;
// where sources overlap, the overlap is explicit and the registry's
// precedence table resolves it. Collectors must be safe to call
// concurrently and must not mutate shared state.
//
// The runner invokes all collectors concurrently with a per-collector
// timeout and a bounded overall fan-out, then joins: reconciliation never
// starts until every collector has returned or timed out. A timeout
// degrades that source's fields to unknown for the cycle. An auth failure
// reuses the source's last good snapshot when it is younger than the
// configured max age, marking it stale; otherwise the source is dropped
// for the cycle. Nothing is retried here; retry policy belongs to the
// caller or scheduler wrapping the core.
//
// Concrete collectors live in the subpackages gitmeta (source-control
// metadata via go-git), confstore (hierarchical configuration store), and
// schedfleet (container scheduler).
package collector
