package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "atlas"
)

// Collector owns every metric family the control plane exports. It
// manages registration against one prometheus.Registry and provides
// typed recording methods per subsystem.
type Collector struct {
	registry *prometheus.Registry

	// Registry metrics
	registryMetrics *RegistryMetrics

	// Source collector metrics
	sourceMetrics *SourceMetrics

	// Composition metrics
	composeMetrics *ComposeMetrics
}

// NewCollector creates a metrics collector. If registry is nil a fresh
// prometheus.Registry is used.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{registry: registry}
	c.registryMetrics = NewRegistryMetrics(registry)
	c.sourceMetrics = NewSourceMetrics(registry)
	c.composeMetrics = NewComposeMetrics(registry)
	return c
}

// Registry returns the metric families for the reconciled registry.
func (c *Collector) Registry() *RegistryMetrics { return c.registryMetrics }

// Sources returns the metric families for the source collectors.
func (c *Collector) Sources() *SourceMetrics { return c.sourceMetrics }

// Compose returns the metric families for the composition pipeline.
func (c *Collector) Compose() *ComposeMetrics { return c.composeMetrics }

// PrometheusRegistry exposes the underlying registry for the handler
// and for tests.
func (c *Collector) PrometheusRegistry() *prometheus.Registry { return c.registry }
