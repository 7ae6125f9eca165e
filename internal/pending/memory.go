package pending

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payment   Payment
	expiresAt time.Time
}

// MemoryStore keeps pending payments in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	nowFn   func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore(nowFn func() time.Time) *MemoryStore {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryStore{nowFn: nowFn, entries: make(map[string]memoryEntry)}
}

// Put stores p until ttl elapses. Expired entries are swept on each write.
func (s *MemoryStore) Put(_ context.Context, p Payment, ttl time.Duration) error {
	key := normalizeOrderID(p.OrderID)
	if key == "" {
		return nil
	}
	now := s.nowFn()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = memoryEntry{payment: p, expiresAt: now.Add(ttl)}
	return nil
}

// Get returns the payment for orderID or nil.
func (s *MemoryStore) Get(_ context.Context, orderID string) (*Payment, error) {
	key := normalizeOrderID(orderID)
	now := s.nowFn()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !now.Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, nil
	}
	p := entry.payment
	return &p, nil
}

// Delete removes the payment for orderID.
func (s *MemoryStore) Delete(_ context.Context, orderID string) error {
	s.mu.Lock()
	delete(s.entries, normalizeOrderID(orderID))
	s.mu.Unlock()
	return nil
}
