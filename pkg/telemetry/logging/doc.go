// Package logging builds the control plane's structured loggers on top
// of log/slog. It parses the configured level and format, and carries
// common request-scoped fields (request id, service name, source id)
// through context so every log line of one operation is correlatable.
package logging
