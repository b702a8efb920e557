// Package schedfleet collects runtime facts from the container scheduler's
// workload API: what actually runs, at what version, with how many
// replicas, and in what health state.
//
// It is the top authority for runtime_version: the scheduler observes the
// deployed runtime, while the service catalog only declares an intent. It
// can also push per-service change signals when the scheduler exposes a
// watch endpoint, which the control plane turns into targeted cache
// invalidations.
package schedfleet
