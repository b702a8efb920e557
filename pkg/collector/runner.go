package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/atlas/pkg/registry"
)

// RunnerConfig controls the fan-out over collectors for one cycle.
type RunnerConfig struct {
	// Timeout is the per-collector fetch timeout.
	Timeout time.Duration

	// MaxConcurrent bounds how many collectors fetch at once, so no one
	// backing system is hammered by a wide fleet of control planes.
	MaxConcurrent int

	// SnapshotMaxAge is how old a cached last-good snapshot may be and
	// still substitute for a source whose credentials were rejected.
	SnapshotMaxAge time.Duration
}

// DefaultRunnerConfig returns the runner defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Timeout:        10 * time.Second,
		MaxConcurrent:  4,
		SnapshotMaxAge: 15 * time.Minute,
	}
}

// Runner fans out over all configured collectors with a bounded worker
// pool and joins before handing the snapshots to the reconciler. It keeps
// each source's last good snapshot for auth-failure degradation; that is
// its only mutable state, guarded by a mutex.
type Runner struct {
	collectors []Collector
	config     RunnerConfig
	logger     *slog.Logger

	mu       sync.Mutex
	lastGood map[string]registry.SourceSnapshot
}

// NewRunner creates a runner over the given collectors.
func NewRunner(collectors []Collector, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRunnerConfig().Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultRunnerConfig().MaxConcurrent
	}
	return &Runner{
		collectors: collectors,
		config:     cfg,
		logger:     logger.With("component", "collector.runner"),
		lastGood:   make(map[string]registry.SourceSnapshot),
	}
}

// Collectors returns the collectors the runner fans out over.
func (r *Runner) Collectors() []Collector {
	return r.collectors
}

// Run invokes every collector concurrently and returns the snapshots that
// survived the cycle. It is a join point: it returns only after every
// collector has returned or timed out. Degraded sources are absent from
// the result (their fields reconcile as unknown) unless a fresh-enough
// cached snapshot substitutes, in which case the snapshot is marked stale.
//
// Run never retries and never fails the cycle for a degraded source; the
// only returned error is ctx's, when the caller cancelled the whole cycle.
func (r *Runner) Run(ctx context.Context) ([]registry.SourceSnapshot, error) {
	type result struct {
		snapshot registry.SourceSnapshot
		err      error
		source   string
	}

	sem := make(chan struct{}, r.config.MaxConcurrent)
	results := make(chan result, len(r.collectors))

	var wg sync.WaitGroup
	for _, c := range r.collectors {
		wg.Add(1)
		go func(c Collector) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- result{source: c.SourceID(), err: &UnavailableError{Source: c.SourceID(), Cause: ctx.Err()}}
				return
			}

			fetchCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
			defer cancel()

			snap, err := c.Fetch(fetchCtx)
			if err != nil && errors.Is(err, context.DeadlineExceeded) && !IsUnavailable(err) {
				err = &UnavailableError{Source: c.SourceID(), Timeout: r.config.Timeout, Cause: err}
			}
			results <- result{snapshot: snap, err: err, source: c.SourceID()}
		}(c)
	}
	wg.Wait()
	close(results)

	snapshots := make([]registry.SourceSnapshot, 0, len(r.collectors))
	for res := range results {
		switch {
		case res.err == nil:
			r.remember(res.snapshot)
			snapshots = append(snapshots, res.snapshot)

		case IsAuthFailure(res.err):
			r.logger.Error("source auth failure, attempting cached snapshot",
				"source", res.source, "error", res.err)
			if cached, ok := r.cached(res.source); ok {
				snapshots = append(snapshots, cached)
			} else {
				r.logger.Warn("no usable cached snapshot, source degraded to unknown",
					"source", res.source, "max_age", r.config.SnapshotMaxAge)
			}

		default:
			// Timeout or transport failure: degraded, not fatal.
			r.logger.Warn("source unavailable, fields degraded to unknown",
				"source", res.source, "error", res.err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// remember stores the last good snapshot for a source.
func (r *Runner) remember(snap registry.SourceSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastGood[snap.SourceID] = snap
}

// cached returns the last good snapshot for a source, marked stale, if it
// is younger than SnapshotMaxAge.
func (r *Runner) cached(source string) (registry.SourceSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.lastGood[source]
	if !ok {
		return registry.SourceSnapshot{}, false
	}
	if time.Since(snap.FetchedAt) > r.config.SnapshotMaxAge {
		return registry.SourceSnapshot{}, false
	}
	snap.Stale = true
	return snap, true
}

// Changes merges the change channels of all collectors that implement
// ChangeNotifier into a single channel of service names. The merged
// channel closes once every source channel has closed or ctx is
// cancelled, and every forwarder exits on cancellation even with a
// send in flight.
func (r *Runner) Changes(ctx context.Context) <-chan string {
	out := make(chan string)
	var wg sync.WaitGroup
	for _, c := range r.collectors {
		notifier, ok := c.(ChangeNotifier)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(ch <-chan string) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case name, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- name:
					case <-ctx.Done():
						return
					}
				}
			}
		}(notifier.Changes())
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
