package storage

import (
	"context"
	"sort"
	"sync"

	"mercator-hq/atlas/pkg/audit"
)

// MemoryStorage implements audit.Storage with an in-memory slice. It is
// intended for tests and short-lived processes; nothing survives a
// restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*audit.Record
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store persists one record.
func (s *MemoryStorage) Store(ctx context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy so later caller mutation cannot change stored history.
	stored := *record
	s.records = append(s.records, &stored)
	return nil
}

// Query retrieves records matching the filters, newest first.
func (s *MemoryStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*audit.Record
	for _, record := range s.records {
		if query.Matches(record) {
			copied := *record
			results = append(results, &copied)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RecordedTime.After(results[j].RecordedTime)
	})

	start := query.Offset
	if start > len(results) {
		return []*audit.Record{}, nil
	}
	results = results[start:]

	limit := query.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of records matching the filters.
func (s *MemoryStorage) Count(ctx context.Context, query *audit.Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, record := range s.records {
		if query.Matches(record) {
			n++
		}
	}
	return n, nil
}

// Close implements audit.Storage. It is a no-op for the memory backend.
func (s *MemoryStorage) Close() error { return nil }
