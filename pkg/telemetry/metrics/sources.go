package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SourceMetrics tracks backing-system collector behavior.
//
// Metrics:
//   - atlas_sources_fetches_total: fetches by source and status
//   - atlas_sources_fetch_duration_seconds: fetch latency by source
//   - atlas_sources_stale_snapshots_total: stale cached snapshots served
type SourceMetrics struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	staleServed   *prometheus.CounterVec
}

// NewSourceMetrics creates and registers the source metric families.
func NewSourceMetrics(registry *prometheus.Registry) *SourceMetrics {
	sm := &SourceMetrics{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sources",
				Name:      "fetches_total",
				Help:      "Total number of source fetches by status (ok, unavailable, auth_failed)",
			},
			[]string{"source", "status"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sources",
				Name:      "fetch_duration_seconds",
				Help:      "Duration of source fetches in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"source"},
		),
		staleServed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sources",
				Name:      "stale_snapshots_total",
				Help:      "Total number of stale cached snapshots substituted for live fetches",
			},
			[]string{"source"},
		),
	}

	registry.MustRegister(sm.fetches, sm.fetchDuration, sm.staleServed)
	return sm
}

// ObserveFetch records one source fetch.
func (sm *SourceMetrics) ObserveFetch(source, status string, duration time.Duration) {
	sm.fetches.WithLabelValues(source, status).Inc()
	sm.fetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// IncStaleServed records one stale snapshot substitution.
func (sm *SourceMetrics) IncStaleServed(source string) {
	sm.staleServed.WithLabelValues(source).Inc()
}
