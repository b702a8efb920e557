package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ComposeMetrics tracks the composition pipeline.
//
// Metrics:
//   - atlas_compose_compositions_total: compositions by mode and outcome
//   - atlas_compose_duration_seconds: composition duration by mode
//   - atlas_compose_violations_total: policy violations by rule
//   - atlas_compose_template_reloads_total: template library reloads by outcome
type ComposeMetrics struct {
	compositions    *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	violations      *prometheus.CounterVec
	templateReloads *prometheus.CounterVec
}

// NewComposeMetrics creates and registers the composition metric
// families.
func NewComposeMetrics(registry *prometheus.Registry) *ComposeMetrics {
	cm := &ComposeMetrics{
		compositions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "compose",
				Name:      "compositions_total",
				Help:      "Total number of compositions by mode and outcome (applied, rejected, failed)",
			},
			[]string{"mode", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "compose",
				Name:      "duration_seconds",
				Help:      "Duration of compositions in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"mode"},
		),
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "compose",
				Name:      "violations_total",
				Help:      "Total number of policy violations by rule",
			},
			[]string{"rule"},
		),
		templateReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "compose",
				Name:      "template_reloads_total",
				Help:      "Total number of template library reloads by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(cm.compositions, cm.duration, cm.violations, cm.templateReloads)
	return cm
}

// ObserveComposition records one composition.
func (cm *ComposeMetrics) ObserveComposition(mode, outcome string, duration time.Duration) {
	cm.compositions.WithLabelValues(mode, outcome).Inc()
	cm.duration.WithLabelValues(mode).Observe(duration.Seconds())
}

// IncViolation records one policy violation.
func (cm *ComposeMetrics) IncViolation(rule string) {
	cm.violations.WithLabelValues(rule).Inc()
}

// IncTemplateReload records one template library reload.
func (cm *ComposeMetrics) IncTemplateReload(outcome string) {
	cm.templateReloads.WithLabelValues(outcome).Inc()
}
