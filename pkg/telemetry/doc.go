// Package telemetry groups the control plane's observability concerns:
// structured logging (logging) and Prometheus metrics (metrics).
package telemetry
