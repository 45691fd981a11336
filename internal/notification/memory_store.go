package notification

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps notifications in a per-key list, newest first,
// capped at maxPerKey and pruned by TTL on each access to the key.
// Readers get copies, so concurrent polls never observe a list mid-write.
type MemoryStore struct {
	mu        sync.RWMutex
	byKey     map[string][]Notification
	ttl       time.Duration
	maxPerKey int
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:     make(map[string][]Notification),
		ttl:       DefaultTTL,
		maxPerKey: DefaultMaxPerKey,
		now:       time.Now,
	}
}

// WithClock substitutes the time source, for expiry tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// prune drops expired entries for a key. Caller holds the write lock.
func (s *MemoryStore) prune(key string) {
	cutoff := s.now().Add(-s.ttl)
	list := s.byKey[key]
	kept := list[:0]
	for _, n := range list {
		if n.CreatedAt.After(cutoff) {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		delete(s.byKey, key)
		return
	}
	s.byKey[key] = kept
}

func (s *MemoryStore) Append(ctx context.Context, key string, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(key)
	list := append([]Notification{n}, s.byKey[key]...)
	if len(list) > s.maxPerKey {
		list = list[:s.maxPerKey] // oldest evicted first
	}
	s.byKey[key] = list
	return nil
}

func (s *MemoryStore) List(ctx context.Context, key string) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(key)
	list := s.byKey[key]
	out := make([]Notification, len(list))
	copy(out, list)
	return out, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, key, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.byKey[key] {
		if n.ID == id {
			s.byKey[key][i].Read = true
			return nil
		}
	}
	return nil // unknown id is a no-op
}

func (s *MemoryStore) MarkAllRead(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byKey[key]
	for i := range list {
		list[i].Read = true
	}
	return nil
}
