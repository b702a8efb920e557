// Package metrics defines the control plane's Prometheus metrics: the
// registry (reconcile cycles, conflicts, cache traffic), the source
// collectors (fetch outcomes and latency), and the composition pipeline
// (compositions by mode and outcome, policy violations by rule).
//
// A Collector owns its own prometheus.Registry; Handler exposes it in
// the standard exposition format.
package metrics
