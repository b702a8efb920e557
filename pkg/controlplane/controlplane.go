package controlplane

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/atlas/pkg/audit"
	auditstorage "mercator-hq/atlas/pkg/audit/storage"
	"mercator-hq/atlas/pkg/collector"
	"mercator-hq/atlas/pkg/compose"
	"mercator-hq/atlas/pkg/compose/layout"
	"mercator-hq/atlas/pkg/compose/policy"
	"mercator-hq/atlas/pkg/compose/service"
	"mercator-hq/atlas/pkg/config"
	"mercator-hq/atlas/pkg/registry"
	"mercator-hq/atlas/pkg/telemetry/metrics"
)

// watchingCollector is implemented by collectors that stream change
// signals after an explicit start.
type watchingCollector interface {
	StartWatch(ctx context.Context)
}

// Options carries the control plane's dependencies. Config and
// Collectors are required; nil Logger, Metrics, and AuditStorage get
// working defaults.
type Options struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Collector
	Collectors []collector.Collector

	// AuditStorage overrides the backend selected by the configuration.
	// Tests inject a memory store here.
	AuditStorage audit.Storage
}

// ControlPlane is the assembled system.
type ControlPlane struct {
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector

	runner     *collector.Runner
	reconciler *registry.Reconciler
	cache      *registry.Cache

	loader   *layout.Loader
	watcher  *layout.Watcher
	composer *compose.Composer

	auditor      *audit.Recorder
	auditStorage audit.Storage
	cron         *cron.Cron

	mu            sync.Mutex
	lastSnapshots []registry.SourceSnapshot

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	started   bool
}

// New assembles a control plane. It loads the template library eagerly
// so a broken library fails construction, not the first composition.
func New(opts Options) (*ControlPlane, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("controlplane: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metricsCollector := opts.Metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewCollector(nil)
	}

	loader := layout.NewLoader(cfg.Templates.Root, logger)
	library, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading template library: %w", err)
	}
	resolver := layout.NewResolver(library, layout.ResolverConfig{
		ExemptionKey: []byte(cfg.Templates.ExemptionKey),
	}, logger)
	composer := compose.NewComposer(resolver, policy.NewMandatoryValidator(logger), logger)

	auditStorage := opts.AuditStorage
	if auditStorage == nil {
		auditStorage, err = openAuditStorage(&cfg.Audit, logger)
		if err != nil {
			return nil, err
		}
	}
	auditor := audit.NewRecorder(auditStorage, &audit.RecorderConfig{
		Enabled:      cfg.Audit.Enabled == nil || *cfg.Audit.Enabled,
		AsyncBuffer:  cfg.Audit.AsyncBuffer,
		WriteTimeout: cfg.Audit.WriteTimeout,
	}, logger)

	runner := collector.NewRunner(opts.Collectors, collector.RunnerConfig{
		Timeout:        cfg.Collectors.Timeout,
		MaxConcurrent:  cfg.Collectors.MaxConcurrent,
		SnapshotMaxAge: cfg.Collectors.SnapshotMaxAge,
	}, logger)

	cp := &ControlPlane{
		config:       cfg,
		logger:       logger.With("component", "controlplane"),
		metrics:      metricsCollector,
		runner:       runner,
		reconciler:   registry.NewReconciler(registry.DefaultPrecedenceTable(), logger),
		cache:        registry.NewCache(cfg.Registry.CacheTTL),
		loader:       loader,
		composer:     composer,
		auditor:      auditor,
		auditStorage: auditStorage,
		cron:         cron.New(),
	}

	if cfg.Templates.Watch == nil || *cfg.Templates.Watch {
		cp.watcher = layout.NewWatcher(loader, layout.WatcherConfig{
			DebounceInterval: cfg.Templates.DebounceInterval,
		}, cp.onTemplateReload, logger)
	}
	return cp, nil
}

func openAuditStorage(cfg *config.AuditConfig, logger *slog.Logger) (audit.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return auditstorage.NewMemoryStorage(), nil
	default:
		sqliteCfg := auditstorage.DefaultSQLiteConfig()
		sqliteCfg.Path = cfg.SQLitePath
		storage, err := auditstorage.NewSQLiteStorage(sqliteCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("opening audit storage: %w", err)
		}
		return storage, nil
	}
}

// onTemplateReload swaps the composer's resolver after a successful
// library rebuild.
func (cp *ControlPlane) onTemplateReload(library *layout.Library) {
	resolver := layout.NewResolver(library, layout.ResolverConfig{
		ExemptionKey: []byte(cp.config.Templates.ExemptionKey),
	}, cp.logger)
	cp.composer.SetResolver(resolver)
	cp.metrics.Compose().IncTemplateReload("ok")
	cp.logger.Info("composer resolver swapped after template reload", "layers", library.Len())
}

// Start wires the background machinery: the reconcile schedule, the
// template watcher, and change-signal consumption. It is idempotent in
// the sense that a second call fails rather than double-starting.
func (cp *ControlPlane) Start(ctx context.Context) error {
	cp.mu.Lock()
	if cp.started {
		cp.mu.Unlock()
		return fmt.Errorf("controlplane: already started")
	}
	cp.started = true
	cp.mu.Unlock()

	cp.runCtx, cp.runCancel = context.WithCancel(ctx)

	if schedule := cp.config.Registry.ReconcileSchedule; schedule != "" {
		_, err := cp.cron.AddFunc(schedule, func() {
			reconcileCtx, cancel := context.WithTimeout(cp.runCtx, 2*cp.config.Collectors.Timeout)
			defer cancel()
			cp.cache.InvalidateAll()
			cp.metrics.Registry().IncInvalidation("ttl")
			if _, err := cp.ReconcileState(reconcileCtx); err != nil {
				cp.logger.Error("scheduled reconcile failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling reconcile: %w", err)
		}
		cp.cron.Start()
	}

	if cp.watcher != nil {
		if err := cp.watcher.Start(); err != nil {
			return fmt.Errorf("starting template watcher: %w", err)
		}
	}

	for _, c := range cp.runner.Collectors() {
		if w, ok := c.(watchingCollector); ok {
			w.StartWatch(cp.runCtx)
		}
	}

	cp.wg.Add(1)
	go cp.consumeChangeSignals()

	cp.logger.Info("control plane started",
		"reconcile_schedule", cp.config.Registry.ReconcileSchedule,
		"template_watch", cp.watcher != nil,
	)
	return nil
}

// consumeChangeSignals invalidates individual cache entries when a
// backing system reports a change.
func (cp *ControlPlane) consumeChangeSignals() {
	defer cp.wg.Done()
	changes := cp.runner.Changes(cp.runCtx)
	for {
		select {
		case <-cp.runCtx.Done():
			return
		case name, ok := <-changes:
			if !ok {
				return
			}
			cp.cache.Invalidate(name)
			cp.metrics.Registry().IncInvalidation("change_signal")
			cp.logger.Debug("cache entry invalidated by change signal", "service", name)
		}
	}
}

// Stop halts the background machinery and drains the audit recorder.
func (cp *ControlPlane) Stop() error {
	cp.mu.Lock()
	started := cp.started
	cp.started = false
	cp.mu.Unlock()

	if started {
		if cp.runCancel != nil {
			cp.runCancel()
		}
		cronCtx := cp.cron.Stop()
		<-cronCtx.Done()
		if cp.watcher != nil {
			cp.watcher.Stop()
		}
		cp.wg.Wait()
	}

	if err := cp.auditor.Close(); err != nil {
		return err
	}
	return cp.auditStorage.Close()
}

// ReconcileState returns the reconciled service registry, serving from
// cache while the full fleet is covered and fresh. A cache miss fans
// out to every collector and merges their snapshots.
func (cp *ControlPlane) ReconcileState(ctx context.Context) (registry.ServiceRegistry, error) {
	if reg, ok := cp.cache.Registry(); ok {
		cp.metrics.Registry().IncCacheHit()
		return reg, nil
	}
	cp.metrics.Registry().IncCacheMiss()

	start := time.Now()
	snapshots, err := cp.runner.Run(ctx)
	if err != nil {
		cp.metrics.Registry().ObserveReconcile("failed", time.Since(start))
		return registry.ServiceRegistry{}, fmt.Errorf("collecting source snapshots: %w", err)
	}

	reg := cp.reconciler.Reconcile(snapshots)
	cp.recordConflicts(reg, snapshots)

	cp.mu.Lock()
	cp.lastSnapshots = snapshots
	cp.mu.Unlock()
	cp.cache.PutRegistry(reg)

	outcome := "ok"
	if degraded(snapshots, len(cp.runner.Collectors())) {
		outcome = "degraded"
	}
	cp.metrics.Registry().ObserveReconcile(outcome, time.Since(start))
	cp.logger.Info("reconcile complete",
		"services", len(reg.Services),
		"sources", len(snapshots),
		"outcome", outcome,
	)
	return reg, nil
}

// Service returns the reconciled record for one service, reconciling
// first if the cache cannot answer.
func (cp *ControlPlane) Service(ctx context.Context, name string) (*registry.ReconciledRecord, error) {
	if record, ok := cp.cache.Get(name); ok {
		cp.metrics.Registry().IncCacheHit()
		return record, nil
	}
	reg, err := cp.ReconcileState(ctx)
	if err != nil {
		return nil, err
	}
	record, ok := reg.Services[name]
	if !ok {
		return nil, &ServiceNotFoundError{Name: name}
	}
	return record, nil
}

// ComposeInfrastructure runs the composition pipeline for one
// descriptor. The outcome is recorded to metrics and the audit trail
// whether it applied, was rejected by policy, or failed.
func (cp *ControlPlane) ComposeInfrastructure(ctx context.Context, desc *service.Descriptor, bindings map[string]service.Value) (*compose.Result, error) {
	start := time.Now()
	result, err := cp.composer.Compose(ctx, desc, bindings)
	elapsed := time.Since(start)
	mode := desc.Mode.String()

	if err != nil {
		cp.metrics.Compose().ObserveComposition(mode, "failed", elapsed)
		cp.auditor.RecordComposition(desc.Name, mode, audit.OutcomeFailed, 0, nil, nil, err)
		return nil, err
	}

	if len(result.Violations) > 0 {
		cp.metrics.Compose().ObserveComposition(mode, "rejected", elapsed)
		violations := make([]audit.ViolationRecord, 0, len(result.Violations))
		for _, v := range result.Violations {
			cp.metrics.Compose().IncViolation(v.RuleID)
			violations = append(violations, audit.ViolationRecord{RuleID: v.RuleID, Message: v.Message})
		}
		cp.auditor.RecordComposition(desc.Name, mode, audit.OutcomeRejected, 0, violations, bindingRecords(result), nil)
		return result, nil
	}

	cp.metrics.Compose().ObserveComposition(mode, "applied", elapsed)
	cp.auditor.RecordComposition(desc.Name, mode, audit.OutcomeApplied, len(result.Artifacts), nil, bindingRecords(result), nil)
	return result, nil
}

// ModeLedger exposes the composition mode ledger for status queries and
// administrative resets.
func (cp *ControlPlane) ModeLedger() *compose.ModeLedger {
	return cp.composer.Ledger()
}

// AuditTrail exposes the audit storage for queries.
func (cp *ControlPlane) AuditTrail() audit.Storage {
	return cp.auditStorage
}

// recordConflicts writes one audit record per conflicting field, with
// every source's claim attached.
func (cp *ControlPlane) recordConflicts(reg registry.ServiceRegistry, snapshots []registry.SourceSnapshot) {
	for name, record := range reg.Services {
		for field, rf := range record.Fields {
			if rf.Provisional {
				cp.metrics.Registry().IncProvisional(field)
			}
			if !rf.Conflict {
				continue
			}
			cp.metrics.Registry().IncConflict(field)
			cp.auditor.RecordConflict(name, field, rf, claims(snapshots, name, field))
		}
	}
}

func claims(snapshots []registry.SourceSnapshot, service, field string) []audit.CompetingValue {
	var out []audit.CompetingValue
	for _, snap := range snapshots {
		facts, ok := snap.Services[service]
		if !ok {
			continue
		}
		fv, ok := facts[field]
		if !ok || !fv.Known {
			continue
		}
		out = append(out, audit.CompetingValue{
			Source:    snap.SourceID,
			Value:     fv.Value,
			FetchedAt: snap.FetchedAt,
		})
	}
	return out
}

// degraded reports whether the snapshot set is short or stale.
func degraded(snapshots []registry.SourceSnapshot, collectors int) bool {
	if len(snapshots) < collectors {
		return true
	}
	for _, snap := range snapshots {
		if snap.Stale {
			return true
		}
	}
	return false
}

func bindingRecords(result *compose.Result) []audit.BindingRecord {
	out := make([]audit.BindingRecord, 0, len(result.Bindings))
	for _, b := range result.Bindings {
		out = append(out, audit.BindingRecord{
			Name:  b.Name,
			Value: b.Value.Text(),
			Layer: b.Layer,
		})
	}
	return out
}
