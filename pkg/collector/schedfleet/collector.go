package schedfleet

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/atlas/pkg/collector"
	"mercator-hq/atlas/pkg/registry"
)

// Config contains the scheduler client settings.
type Config struct {
	// BaseURL is the scheduler API base, e.g. "https://sched.internal".
	BaseURL string `yaml:"base_url"`

	// Token is the bearer token presented to the scheduler.
	Token string `yaml:"token"`

	// Timeout is the HTTP client timeout for workload listing. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`

	// Watch enables the change-signal stream from /v1/events.
	Watch bool `yaml:"watch"`
}

// workload is one entry of the scheduler's GET /v1/workloads response.
type workload struct {
	Name           string `json:"name"`
	RuntimeVersion string `json:"runtime_version"`
	Replicas       int    `json:"replicas"`
	Status         string `json:"status"`
}

// Collector implements collector.Collector over the container scheduler.
type Collector struct {
	config  Config
	client  *http.Client
	logger  *slog.Logger
	changes chan string
}

// New creates a scheduler collector.
func New(cfg Config, logger *slog.Logger) (*Collector, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("schedfleet: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With("component", "collector.schedfleet"),
		changes: make(chan string, 64),
	}, nil
}

// SourceID implements collector.Collector.
func (c *Collector) SourceID() string { return registry.SourceSchedFleet }

// Fields implements collector.Collector.
func (c *Collector) Fields() []string {
	return []string{
		registry.FieldRuntimeVersion,
		registry.FieldReplicas,
		registry.FieldStatus,
	}
}

// Fetch lists all workloads and maps them onto runtime facts.
func (c *Collector) Fetch(ctx context.Context) (registry.SourceSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/v1/workloads", nil)
	if err != nil {
		return registry.SourceSnapshot{}, &collector.UnavailableError{Source: registry.SourceSchedFleet, Cause: err}
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return registry.SourceSnapshot{}, &collector.UnavailableError{
				Source: registry.SourceSchedFleet, Timeout: c.config.Timeout, Cause: err,
			}
		}
		return registry.SourceSnapshot{}, &collector.UnavailableError{Source: registry.SourceSchedFleet, Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return registry.SourceSnapshot{}, &collector.AuthError{
			Source:  registry.SourceSchedFleet,
			Message: fmt.Sprintf("scheduler returned status %d", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		return registry.SourceSnapshot{}, &collector.UnavailableError{
			Source: registry.SourceSchedFleet,
			Cause:  fmt.Errorf("scheduler returned status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return registry.SourceSnapshot{}, &collector.UnavailableError{Source: registry.SourceSchedFleet, Cause: err}
	}
	var workloads []workload
	if err := json.Unmarshal(body, &workloads); err != nil {
		return registry.SourceSnapshot{}, &collector.UnavailableError{
			Source: registry.SourceSchedFleet,
			Cause:  fmt.Errorf("malformed scheduler response: %w", err),
		}
	}

	services := make(map[string]registry.ServiceFacts, len(workloads))
	for _, w := range workloads {
		if w.Name == "" {
			continue
		}
		facts := registry.ServiceFacts{
			registry.FieldReplicas: registry.Known(strconv.Itoa(w.Replicas)),
		}
		if w.RuntimeVersion != "" {
			facts[registry.FieldRuntimeVersion] = registry.Known(w.RuntimeVersion)
		} else {
			facts[registry.FieldRuntimeVersion] = registry.Unknown()
		}
		if w.Status != "" {
			facts[registry.FieldStatus] = registry.Known(w.Status)
		} else {
			facts[registry.FieldStatus] = registry.Unknown()
		}
		services[w.Name] = facts
	}
	return registry.SourceSnapshot{
		SourceID:  registry.SourceSchedFleet,
		FetchedAt: time.Now(),
		Services:  services,
	}, nil
}

// Changes implements collector.ChangeNotifier. The channel only carries
// signals after StartWatch has been called.
func (c *Collector) Changes() <-chan string {
	return c.changes
}

// StartWatch runs the change-signal loop until ctx is done, then closes
// the change channel. The scheduler's /v1/events endpoint long-polls and
// emits one service name per line.
func (c *Collector) StartWatch(ctx context.Context) {
	defer close(c.changes)
	if !c.config.Watch {
		<-ctx.Done()
		return
	}
	for {
		if err := c.watchOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("event stream interrupted, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// watchOnce consumes one event stream connection.
func (c *Collector) watchOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/v1/events", nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	// No client timeout here, the stream stays open until ctx cancels.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scheduler returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		name := scanner.Text()
		if name == "" {
			continue
		}
		select {
		case c.changes <- name:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// A full buffer means the consumer is behind; dropping a
			// signal is safe because TTL expiry still refreshes.
			c.logger.Debug("dropping change signal, buffer full", "service", name)
		}
	}
	return scanner.Err()
}

func (c *Collector) authorize(req *http.Request) {
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
}
