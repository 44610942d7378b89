package order

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is the default volatile store. Readers and the status writer
// share it under a RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.OrderID]; ok {
		return fmt.Errorf("order %s already exists", rec.OrderID)
	}
	s.records[rec.OrderID] = rec
	s.order = append(s.order, rec.OrderID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, orderID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[orderID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, orderID string, status Status) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[orderID]
	if !ok {
		return Record{}, ErrNotFound
	}
	if !rec.Status.CanTransitionTo(status) {
		return rec, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, status)
	}
	rec.Status = status
	s.records[orderID] = rec
	return rec, nil
}
