package store

import (
	"context"
	"sort"
	"sync"

	"stockwatch/models"
)

// MemoryStore keeps the watch table in process memory. It backs tests and
// single-node runs where durability across restarts is not needed.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]models.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]models.Record)}
}

func (s *MemoryStore) Put(_ context.Context, rec models.Record) error {
	s.mu.Lock()
	s.rows[rec.Key()] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, typ models.RecordType, ticker string) (models.Record, bool, error) {
	s.mu.RLock()
	rec, ok := s.rows[models.Record{Type: typ, Ticker: ticker}.Key()]
	s.mu.RUnlock()
	return rec, ok, nil
}

func (s *MemoryStore) List(_ context.Context, typ models.RecordType) ([]models.Record, error) {
	s.mu.RLock()
	var out []models.Record
	for _, rec := range s.rows {
		if rec.Type == typ {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}
