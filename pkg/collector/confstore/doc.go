// Package confstore collects operational configuration facts from the
// platform's hierarchical configuration store over its HTTP API.
//
// The store is hierarchical: it serves fleet-wide defaults plus
// per-service overlays, and the collector flattens the two before
// reporting, so a service inherits every default it does not override.
// The collector is authoritative for tier, monitoring, and tls_profile,
// and shares owner authority with the service catalog.
package confstore
