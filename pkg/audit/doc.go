// Package audit provides the control plane's audit trail. It records
// reconciliation conflicts and composition outcomes so operators can
// answer "why does this service have this value" and "why was this
// composition rejected" after the fact.
//
// Records are written asynchronously through a Recorder backed by a
// buffered channel; the hot paths (reconcile, compose) never block on
// storage. Two storage backends exist: an in-memory store for tests
// and short-lived processes, and a SQLite store for durable trails.
package audit
