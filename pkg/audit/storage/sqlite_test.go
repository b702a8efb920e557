package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/atlas/pkg/audit"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	config := DefaultSQLiteConfig()
	config.Path = filepath.Join(t.TempDir(), "audit.db")
	s, err := NewSQLiteStorage(config, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage_RoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	stored := &audit.Record{
		ID:           "rec-1",
		Kind:         audit.KindConflict,
		RecordedTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Service:      "checkout",
		Field:        "runtime_version",
		ChosenValue:  "22",
		ChosenSource: "schedfleet",
		Competing: []audit.CompetingValue{
			{Source: "schedfleet", Value: "22"},
			{Source: "gitmeta", Value: "21-LTS"},
		},
	}
	if err := s.Store(ctx, stored); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := s.Query(ctx, &audit.Query{Service: "checkout"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	r := got[0]
	if r.ID != "rec-1" || r.Kind != audit.KindConflict {
		t.Errorf("id/kind = %q/%q", r.ID, r.Kind)
	}
	if r.ChosenSource != "schedfleet" || r.ChosenValue != "22" {
		t.Errorf("chosen = %s=%q", r.ChosenSource, r.ChosenValue)
	}
	if len(r.Competing) != 2 || r.Competing[1].Value != "21-LTS" {
		t.Errorf("competing = %v", r.Competing)
	}
}

func TestSQLiteStorage_QueryFilters(t *testing.T) {
	s := newTestSQLite(t)
	base := seed(t, s)
	ctx := context.Background()

	got, err := s.Query(ctx, &audit.Query{
		Kinds: []audit.Kind{audit.KindComposition},
		Since: base.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "d" {
		t.Errorf("got %v, want record d only", got)
	}

	n, err := s.Count(ctx, &audit.Query{Kinds: []audit.Kind{audit.KindConflict}})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestSQLiteStorage_CompositionRecord(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	stored := &audit.Record{
		ID:            "rec-2",
		Kind:          audit.KindComposition,
		RecordedTime:  time.Now().UTC(),
		Service:       "checkout",
		Mode:          "extended",
		Outcome:       audit.OutcomeRejected,
		ArtifactCount: 0,
		Violations: []audit.ViolationRecord{
			{RuleID: "tls_required", Message: "encryption in transit is disabled"},
		},
		Bindings: []audit.BindingRecord{
			{Name: "tls_enabled", Value: "false", Layer: "override"},
		},
	}
	if err := s.Store(ctx, stored); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := s.Query(ctx, &audit.Query{Kinds: []audit.Kind{audit.KindComposition}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	r := got[0]
	if r.Outcome != audit.OutcomeRejected || r.Mode != "extended" {
		t.Errorf("outcome/mode = %q/%q", r.Outcome, r.Mode)
	}
	if len(r.Violations) != 1 || r.Violations[0].RuleID != "tls_required" {
		t.Errorf("violations = %v", r.Violations)
	}
	if len(r.Bindings) != 1 || r.Bindings[0].Layer != "override" {
		t.Errorf("bindings = %v", r.Bindings)
	}
}
