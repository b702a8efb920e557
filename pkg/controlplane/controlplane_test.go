package controlplane

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mercator-hq/atlas/pkg/audit"
	auditstorage "mercator-hq/atlas/pkg/audit/storage"
	"mercator-hq/atlas/pkg/collector"
	"mercator-hq/atlas/pkg/compose/layout"
	"mercator-hq/atlas/pkg/compose/service"
	"mercator-hq/atlas/pkg/config"
	"mercator-hq/atlas/pkg/registry"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func boolPtr(v bool) *bool { return &v }

// fakeCollector scripts one source: a fixed snapshot, a fetch counter,
// and an optional change-signal channel.
type fakeCollector struct {
	id      string
	facts   map[string]registry.ServiceFacts
	changes chan string

	mu      sync.Mutex
	fetches int
}

func (f *fakeCollector) Fetch(ctx context.Context) (registry.SourceSnapshot, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	return registry.SourceSnapshot{
		SourceID:  f.id,
		FetchedAt: time.Now(),
		Services:  f.facts,
	}, nil
}

func (f *fakeCollector) SourceID() string { return f.id }

func (f *fakeCollector) Fields() []string { return nil }

func (f *fakeCollector) Changes() <-chan string { return f.changes }

func (f *fakeCollector) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func writeLayer(t *testing.T, root, id, manifest string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "layer.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path)+layout.TemplateSuffix)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func templateRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeLayer(t, root, "base",
		"rank: 0\nrequired: [service_name, runtime_version]\n",
		map[string]string{
			"service.yaml": "name: {{service_name}}\nlanguage: {{language}}\nruntime_version: {{runtime_version}}\n",
		})
	writeLayer(t, root, "platform",
		"rank: 10\n"+
			"mandatory_files: [platform/tls.conf, observability/monitoring.yaml]\n"+
			"defaults:\n  tls_enabled: true\n  monitoring_level: basic\n",
		map[string]string{
			"platform/tls.conf":             "tls_enabled: {{tls_enabled}}\n",
			"observability/monitoring.yaml": "service: {{service_name}}\nlevel: {{monitoring_level}}\n",
		})
	writeLayer(t, root, "lang-go",
		"rank: 20\n",
		map[string]string{
			"build/go.conf": "go {{runtime_version}}\n",
		})
	return root
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Collectors.Timeout = 2 * time.Second
	cfg.Collectors.MaxConcurrent = 4
	cfg.Collectors.SnapshotMaxAge = 10 * time.Minute
	cfg.Registry.CacheTTL = time.Minute
	cfg.Templates.Root = templateRoot(t)
	cfg.Templates.Watch = boolPtr(false)
	cfg.Templates.ExemptionKey = "test-key"
	cfg.Audit.Backend = "memory"
	cfg.Audit.AsyncBuffer = 64
	cfg.Audit.WriteTimeout = 2 * time.Second
	return cfg
}

func newTestPlane(t *testing.T, collectors ...collector.Collector) (*ControlPlane, *auditstorage.MemoryStorage) {
	t.Helper()
	store := auditstorage.NewMemoryStorage()
	cp, err := New(Options{
		Config:       testConfig(t),
		Logger:       quietLogger(),
		Collectors:   collectors,
		AuditStorage: store,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cp, store
}

func conflictingCollectors() (*fakeCollector, *fakeCollector) {
	git := &fakeCollector{
		id: registry.SourceGitMeta,
		facts: map[string]registry.ServiceFacts{
			"checkout": {
				registry.FieldLanguage:       registry.Known("go"),
				registry.FieldRuntimeVersion: registry.Known("1.24"),
				registry.FieldOwner:          registry.Known("payments-team"),
			},
		},
	}
	sched := &fakeCollector{
		id: registry.SourceSchedFleet,
		facts: map[string]registry.ServiceFacts{
			"checkout": {
				registry.FieldRuntimeVersion: registry.Known("1.25"),
				registry.FieldReplicas:       registry.Known("3"),
			},
		},
	}
	return git, sched
}

func waitForRecords(t *testing.T, store *auditstorage.MemoryStorage, query *audit.Query, want int) []*audit.Record {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		records, err := store.Query(context.Background(), query)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(records) >= want {
			return records
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d audit records", want)
	return nil
}

func TestControlPlane_ReconcileStateServesFromCache(t *testing.T) {
	git, sched := conflictingCollectors()
	cp, _ := newTestPlane(t, git, sched)
	defer cp.Stop()

	reg, err := cp.ReconcileState(context.Background())
	if err != nil {
		t.Fatalf("ReconcileState: %v", err)
	}
	record, ok := reg.Services["checkout"]
	if !ok {
		t.Fatal("checkout missing from registry")
	}

	rv := record.Field(registry.FieldRuntimeVersion)
	if rv.Value != "1.25" || rv.Source != registry.SourceSchedFleet {
		t.Fatalf("runtime_version = %q from %q, want 1.25 from schedfleet", rv.Value, rv.Source)
	}
	if !rv.Conflict {
		t.Fatal("runtime_version disagreement not flagged as conflict")
	}

	if _, err := cp.ReconcileState(context.Background()); err != nil {
		t.Fatalf("second ReconcileState: %v", err)
	}
	if got := git.fetchCount(); got != 1 {
		t.Fatalf("gitmeta fetched %d times, want 1 (cache should serve)", got)
	}
}

func TestControlPlane_ConflictRecordedToAudit(t *testing.T) {
	git, sched := conflictingCollectors()
	cp, store := newTestPlane(t, git, sched)
	defer cp.Stop()

	if _, err := cp.ReconcileState(context.Background()); err != nil {
		t.Fatalf("ReconcileState: %v", err)
	}

	records := waitForRecords(t, store, &audit.Query{Kinds: []audit.Kind{audit.KindConflict}}, 1)
	rec := records[0]
	if rec.Service != "checkout" || rec.Field != registry.FieldRuntimeVersion {
		t.Fatalf("conflict record for %s/%s, want checkout/runtime_version", rec.Service, rec.Field)
	}
	if rec.ChosenValue != "1.25" || rec.ChosenSource != registry.SourceSchedFleet {
		t.Fatalf("chosen = %q from %q", rec.ChosenValue, rec.ChosenSource)
	}
	if len(rec.Competing) != 2 {
		t.Fatalf("got %d competing claims, want 2", len(rec.Competing))
	}
}

func TestControlPlane_ServiceNotFound(t *testing.T) {
	git, sched := conflictingCollectors()
	cp, _ := newTestPlane(t, git, sched)
	defer cp.Stop()

	_, err := cp.Service(context.Background(), "no-such-service")
	var notFound *ServiceNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want *ServiceNotFoundError", err)
	}
	if notFound.Name != "no-such-service" {
		t.Fatalf("Name = %q", notFound.Name)
	}
}

func TestControlPlane_ComposeInfrastructureApplied(t *testing.T) {
	git, sched := conflictingCollectors()
	cp, store := newTestPlane(t, git, sched)
	defer cp.Stop()

	desc := &service.Descriptor{Name: "checkout", Language: service.LanguageGo, Mode: service.ModeSimple}
	result, err := cp.ComposeInfrastructure(context.Background(), desc, map[string]service.Value{
		"runtime_version": service.String("1.25"),
	})
	if err != nil {
		t.Fatalf("ComposeInfrastructure: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("unexpected violations: %v", result.Violations)
	}
	if _, ok := result.Artifacts["platform/tls.conf"]; !ok {
		t.Fatal("mandatory platform artifact missing")
	}

	records := waitForRecords(t, store, &audit.Query{Kinds: []audit.Kind{audit.KindComposition}}, 1)
	rec := records[0]
	if rec.Outcome != audit.OutcomeApplied {
		t.Fatalf("outcome = %q, want applied", rec.Outcome)
	}
	if rec.ArtifactCount != len(result.Artifacts) {
		t.Fatalf("artifact count = %d, want %d", rec.ArtifactCount, len(result.Artifacts))
	}
	if len(rec.Bindings) == 0 {
		t.Fatal("composition record carries no bindings")
	}
}

func TestControlPlane_ComposeRejectedRecordsViolations(t *testing.T) {
	git, sched := conflictingCollectors()
	cp, store := newTestPlane(t, git, sched)
	defer cp.Stop()

	desc := &service.Descriptor{
		Name:      "checkout",
		Language:  service.LanguageGo,
		Mode:      service.ModeConfigured,
		Overrides: map[string]service.Value{"tls_enabled": service.Bool(false)},
	}
	result, err := cp.ComposeInfrastructure(context.Background(), desc, map[string]service.Value{
		"runtime_version": service.String("1.25"),
	})
	if err != nil {
		t.Fatalf("ComposeInfrastructure: %v", err)
	}
	if len(result.Violations) == 0 {
		t.Fatal("expected policy violations")
	}
	if result.Artifacts != nil {
		t.Fatal("rejected composition must not return artifacts")
	}

	records := waitForRecords(t, store, &audit.Query{Kinds: []audit.Kind{audit.KindComposition}}, 1)
	rec := records[0]
	if rec.Outcome != audit.OutcomeRejected {
		t.Fatalf("outcome = %q, want rejected", rec.Outcome)
	}
	if len(rec.Violations) == 0 {
		t.Fatal("composition record carries no violations")
	}
}

func TestControlPlane_Drift(t *testing.T) {
	git, sched := conflictingCollectors()
	cp, _ := newTestPlane(t, git, sched)
	defer cp.Stop()

	if got := cp.Drift(); len(got.Fields) != 0 {
		t.Fatalf("drift before first reconcile: %+v", got.Fields)
	}

	if _, err := cp.ReconcileState(context.Background()); err != nil {
		t.Fatalf("ReconcileState: %v", err)
	}

	report := cp.Drift()
	if len(report.Fields) != 1 {
		t.Fatalf("got %d drifting fields, want 1: %+v", len(report.Fields), report.Fields)
	}
	drift := report.Fields[0]
	if drift.Service != "checkout" || drift.Field != registry.FieldRuntimeVersion {
		t.Fatalf("drift on %s/%s", drift.Service, drift.Field)
	}
	if len(drift.Claims) != 2 || drift.Claims[0].Source != registry.SourceGitMeta {
		t.Fatalf("claims = %+v", drift.Claims)
	}
}

func TestControlPlane_ChangeSignalInvalidatesCache(t *testing.T) {
	git, sched := conflictingCollectors()
	sched.changes = make(chan string)
	cp, _ := newTestPlane(t, git, sched)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := cp.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		close(sched.changes)
		if err := cp.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}()

	if _, err := cp.ReconcileState(context.Background()); err != nil {
		t.Fatalf("ReconcileState: %v", err)
	}
	if got := sched.fetchCount(); got != 1 {
		t.Fatalf("fetches = %d, want 1", got)
	}

	sched.changes <- "checkout"

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := cp.Service(context.Background(), "checkout"); err != nil {
			t.Fatalf("Service: %v", err)
		}
		if sched.fetchCount() > 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("change signal did not invalidate the cached record")
}

func TestControlPlane_DoubleStartRejected(t *testing.T) {
	git, sched := conflictingCollectors()
	cp, _ := newTestPlane(t, git, sched)

	ctx := context.Background()
	if err := cp.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := cp.Start(ctx); err == nil {
		t.Fatal("second Start succeeded")
	}
	if err := cp.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
