package order

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedStore is a write-through LRU in front of another Store. List always
// goes to the backing store.
type CachedStore struct {
	next  Store
	cache *expirable.LRU[string, Record]
}

func NewCachedStore(next Store, size int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		next:  next,
		cache: expirable.NewLRU[string, Record](size, nil, ttl),
	}
}

func (s *CachedStore) Create(ctx context.Context, rec Record) error {
	if err := s.next.Create(ctx, rec); err != nil {
		return err
	}
	s.cache.Add(rec.OrderID, rec)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, orderID string) (Record, error) {
	if rec, ok := s.cache.Get(orderID); ok {
		return rec, nil
	}
	rec, err := s.next.Get(ctx, orderID)
	if err != nil {
		return Record{}, err
	}
	s.cache.Add(orderID, rec)
	return rec, nil
}

func (s *CachedStore) List(ctx context.Context) ([]Record, error) {
	return s.next.List(ctx)
}

func (s *CachedStore) UpdateStatus(ctx context.Context, orderID string, status Status) (Record, error) {
	rec, err := s.next.UpdateStatus(ctx, orderID, status)
	if err != nil {
		s.cache.Remove(orderID)
		return rec, err
	}
	s.cache.Add(orderID, rec)
	return rec, nil
}
