// Package controlplane assembles the Atlas control plane: the source
// collectors and reconciler behind the service registry, and the
// template composition pipeline with policy validation. It is the
// facade the CLI and any embedding process talk to.
//
// The two entry points mirror the two halves of the system:
//
//   - ReconcileState fans out to the backing systems, merges their
//     claims by precedence, and returns the reconciled registry.
//     Results are cached with a TTL; change signals from the backing
//     systems invalidate individual services early.
//
//   - ComposeInfrastructure runs the composition pipeline for one
//     service descriptor and returns either the complete artifact set
//     or the full list of policy violations.
//
// Start wires the background machinery: the cron reconcile schedule,
// the template library watcher, and change-signal consumption. Stop
// shuts it down and drains the audit recorder.
package controlplane
