package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/gaitlab/paddock/pkg/metrics"
)

// FieldStore is the in-memory Store implementation. A field tops out at a
// few dozen horses and lives for one run, so a mutex-guarded map with a
// sort on read is the whole design.
type FieldStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewFieldStore creates an empty FieldStore.
func NewFieldStore() *FieldStore {
	return &FieldStore{records: make(map[string]Record)}
}

func (s *FieldStore) Put(_ context.Context, rec Record) error {
	if rec.HorseID == "" {
		return ErrEmptyHorseID
	}

	s.mu.Lock()
	s.records[rec.HorseID] = rec
	size := len(s.records)
	s.mu.Unlock()

	metrics.UpdateFieldHorses(size)
	return nil
}

func (s *FieldStore) Get(_ context.Context, horseID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[horseID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *FieldStore) Field(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].HorseID < out[j].HorseID })
	return out, nil
}

func (s *FieldStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
