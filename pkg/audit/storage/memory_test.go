package storage

import (
	"context"
	"testing"
	"time"

	"mercator-hq/atlas/pkg/audit"
)

func record(id string, kind audit.Kind, service string, at time.Time) *audit.Record {
	return &audit.Record{ID: id, Kind: kind, Service: service, RecordedTime: at}
}

func seed(t *testing.T, s audit.Storage) time.Time {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	records := []*audit.Record{
		record("a", audit.KindConflict, "checkout", base),
		record("b", audit.KindComposition, "checkout", base.Add(time.Minute)),
		record("c", audit.KindConflict, "billing", base.Add(2*time.Minute)),
		record("d", audit.KindComposition, "billing", base.Add(3*time.Minute)),
	}
	for _, r := range records {
		if err := s.Store(ctx, r); err != nil {
			t.Fatalf("Store %q: %v", r.ID, err)
		}
	}
	return base
}

func TestMemoryStorage_QueryFilters(t *testing.T) {
	s := NewMemoryStorage()
	base := seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name  string
		query audit.Query
		want  []string // ids, newest first
	}{
		{"all", audit.Query{}, []string{"d", "c", "b", "a"}},
		{"by service", audit.Query{Service: "checkout"}, []string{"b", "a"}},
		{"by kind", audit.Query{Kinds: []audit.Kind{audit.KindConflict}}, []string{"c", "a"}},
		{"since", audit.Query{Since: base.Add(2 * time.Minute)}, []string{"d", "c"}},
		{"until", audit.Query{Until: base.Add(time.Minute)}, []string{"b", "a"}},
		{"limit", audit.Query{Limit: 2}, []string{"d", "c"}},
		{"offset", audit.Query{Limit: 2, Offset: 2}, []string{"b", "a"}},
		{"no match", audit.Query{Service: "unknown"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, &tt.query)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.ID != tt.want[i] {
					t.Errorf("record %d = %q, want %q", i, r.ID, tt.want[i])
				}
			}
		})
	}
}

func TestMemoryStorage_Count(t *testing.T) {
	s := NewMemoryStorage()
	seed(t, s)

	n, err := s.Count(context.Background(), &audit.Query{Service: "billing"})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestMemoryStorage_CopiesOnStore(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	r := record("a", audit.KindConflict, "checkout", time.Now())
	if err := s.Store(ctx, r); err != nil {
		t.Fatal(err)
	}
	r.Service = "mutated"

	got, err := s.Query(ctx, &audit.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Service != "checkout" {
		t.Errorf("stored record mutated through caller reference: %q", got[0].Service)
	}
}
