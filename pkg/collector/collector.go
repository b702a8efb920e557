package collector

import (
	"context"

	"mercator-hq/atlas/pkg/registry"
)

// Collector is the adapter contract over one backing system. Implementations
// must be safe for concurrent use and must respect context cancellation.
type Collector interface {
	// Fetch produces a partial snapshot of service facts from the backing
	// system. A returned error should be an *UnavailableError for
	// timeouts and transport failures, or an *AuthError when the backing
	// system rejected the collector's credentials; the runner degrades
	// the cycle accordingly instead of failing it.
	Fetch(ctx context.Context) (registry.SourceSnapshot, error)

	// SourceID returns the stable source id used in the precedence table
	// and in provenance on reconciled records.
	SourceID() string

	// Fields returns the field names this collector is authoritative
	// for. Overlap with another collector must be deliberate; the
	// precedence table is the single arbiter of overlapping fields.
	Fields() []string
}

// ChangeNotifier is an optional collector capability: a collector that can
// watch its backing system pushes per-service change signals, which the
// control plane turns into per-service cache invalidations.
type ChangeNotifier interface {
	// Changes returns a channel of service names that changed. The
	// channel is closed when the collector shuts down.
	Changes() <-chan string
}
