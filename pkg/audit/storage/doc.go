// Package storage provides the audit trail's persistence backends: an
// in-memory store for tests and short-lived processes, and a SQLite
// store for durable trails.
package storage
