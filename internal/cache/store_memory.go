package cache

import (
	"context"
	"sync"
	"time"

	"consentgate/pkg/platform/sentinel"
)

// entry pairs a value with its expiry. Expired entries stay in the map until
// read (passive expiry), mirroring how page-local storage behaves.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryStore is the default engine cache, standing in for page-local
// storage. It intentionally favors clarity over performance.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	clock   func() time.Time
}

// InMemoryOption configures an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewInMemoryStore(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		entries: make(map[string]entry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.clock().Before(e.expiresAt) {
		return nil, sentinel.ErrExpired
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *InMemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	e := entry{value: stored}
	if ttl > 0 {
		e.expiresAt = s.clock().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
