package confstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/atlas/pkg/collector"
	"mercator-hq/atlas/pkg/registry"
)

// Config contains the configuration store client settings.
type Config struct {
	// BaseURL is the store's API base, e.g. "https://confstore.internal".
	BaseURL string `yaml:"base_url"`

	// Token is the bearer token presented to the store.
	Token string `yaml:"token"`

	// Timeout is the HTTP client timeout. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`
}

// document is the store's GET /v1/services response: fleet defaults plus
// per-service overlays.
type document struct {
	Defaults map[string]string            `json:"defaults"`
	Services map[string]map[string]string `json:"services"`
}

// Collector implements collector.Collector over the configuration store.
type Collector struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a configuration store collector.
func New(cfg Config, logger *slog.Logger) (*Collector, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("confstore: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "collector.confstore"),
	}, nil
}

// SourceID implements collector.Collector.
func (c *Collector) SourceID() string { return registry.SourceConfStore }

// Fields implements collector.Collector.
func (c *Collector) Fields() []string {
	return []string{
		registry.FieldOwner,
		registry.FieldTier,
		registry.FieldMonitoring,
		registry.FieldTLSProfile,
	}
}

// Fetch reads the full configuration document and flattens the hierarchy
// into one fact map per service.
func (c *Collector) Fetch(ctx context.Context) (registry.SourceSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/v1/services", nil)
	if err != nil {
		return registry.SourceSnapshot{}, &collector.UnavailableError{Source: registry.SourceConfStore, Cause: err}
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return registry.SourceSnapshot{}, &collector.UnavailableError{
				Source: registry.SourceConfStore, Timeout: c.config.Timeout, Cause: err,
			}
		}
		return registry.SourceSnapshot{}, &collector.UnavailableError{Source: registry.SourceConfStore, Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return registry.SourceSnapshot{}, &collector.AuthError{
			Source:  registry.SourceConfStore,
			Message: fmt.Sprintf("store returned status %d", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		return registry.SourceSnapshot{}, &collector.UnavailableError{
			Source: registry.SourceConfStore,
			Cause:  fmt.Errorf("store returned status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return registry.SourceSnapshot{}, &collector.UnavailableError{Source: registry.SourceConfStore, Cause: err}
	}
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return registry.SourceSnapshot{}, &collector.UnavailableError{
			Source: registry.SourceConfStore,
			Cause:  fmt.Errorf("malformed store response: %w", err),
		}
	}

	services := make(map[string]registry.ServiceFacts, len(doc.Services))
	for name, overlay := range doc.Services {
		services[name] = c.facts(doc.Defaults, overlay)
	}
	return registry.SourceSnapshot{
		SourceID:  registry.SourceConfStore,
		FetchedAt: time.Now(),
		Services:  services,
	}, nil
}

// facts flattens defaults under the per-service overlay and maps the
// result onto the collector's field set.
func (c *Collector) facts(defaults, overlay map[string]string) registry.ServiceFacts {
	lookup := func(key string) registry.FieldValue {
		if v, ok := overlay[key]; ok && v != "" {
			return registry.Known(v)
		}
		if v, ok := defaults[key]; ok && v != "" {
			return registry.Known(v)
		}
		return registry.Unknown()
	}
	return registry.ServiceFacts{
		registry.FieldOwner:      lookup("owner"),
		registry.FieldTier:       lookup("tier"),
		registry.FieldMonitoring: lookup("monitoring"),
		registry.FieldTLSProfile: lookup("tls_profile"),
	}
}
