package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RegistryMetrics tracks reconciliation and registry cache behavior.
//
// Metrics:
//   - atlas_registry_reconcile_cycles_total: reconcile cycles by outcome
//   - atlas_registry_reconcile_duration_seconds: cycle duration histogram
//   - atlas_registry_conflicts_total: observed field conflicts by field
//   - atlas_registry_provisional_fields_total: provisional winners by field
//   - atlas_registry_cache_requests_total: cache lookups by result
//   - atlas_registry_cache_invalidations_total: invalidations by reason
type RegistryMetrics struct {
	reconcileCycles   *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	conflicts         *prometheus.CounterVec
	provisional       *prometheus.CounterVec
	cacheRequests     *prometheus.CounterVec
	invalidations     *prometheus.CounterVec
}

// NewRegistryMetrics creates and registers the registry metric families.
func NewRegistryMetrics(registry *prometheus.Registry) *RegistryMetrics {
	rm := &RegistryMetrics{
		reconcileCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "reconcile_cycles_total",
				Help:      "Total number of reconcile cycles by outcome",
			},
			[]string{"outcome"},
		),
		reconcileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "reconcile_duration_seconds",
				Help:      "Duration of reconcile cycles in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "conflicts_total",
				Help:      "Total number of field conflicts observed during reconciliation",
			},
			[]string{"field"},
		),
		provisional: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "provisional_fields_total",
				Help:      "Total number of fields resolved from a lower-precedence source",
			},
			[]string{"field"},
		),
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "cache_requests_total",
				Help:      "Total number of registry cache lookups by result",
			},
			[]string{"result"},
		),
		invalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "cache_invalidations_total",
				Help:      "Total number of registry cache invalidations by reason",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		rm.reconcileCycles,
		rm.reconcileDuration,
		rm.conflicts,
		rm.provisional,
		rm.cacheRequests,
		rm.invalidations,
	)
	return rm
}

// ObserveReconcile records one reconcile cycle.
func (rm *RegistryMetrics) ObserveReconcile(outcome string, duration time.Duration) {
	rm.reconcileCycles.WithLabelValues(outcome).Inc()
	rm.reconcileDuration.Observe(duration.Seconds())
}

// IncConflict records one observed field conflict.
func (rm *RegistryMetrics) IncConflict(field string) {
	rm.conflicts.WithLabelValues(field).Inc()
}

// IncProvisional records one provisional field resolution.
func (rm *RegistryMetrics) IncProvisional(field string) {
	rm.provisional.WithLabelValues(field).Inc()
}

// IncCacheHit records a registry cache hit.
func (rm *RegistryMetrics) IncCacheHit() {
	rm.cacheRequests.WithLabelValues("hit").Inc()
}

// IncCacheMiss records a registry cache miss.
func (rm *RegistryMetrics) IncCacheMiss() {
	rm.cacheRequests.WithLabelValues("miss").Inc()
}

// IncInvalidation records a cache invalidation, labeled by its reason
// ("change_signal", "ttl", "manual").
func (rm *RegistryMetrics) IncInvalidation(reason string) {
	rm.invalidations.WithLabelValues(reason).Inc()
}
