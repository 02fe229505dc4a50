package memory

import (
	"context"
	"sync"

	audit "consentgate/pkg/platform/audit"
)

// InMemoryStore keeps audit events in memory. Used by tests and local
// development; it intentionally favors clarity over performance.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByWidget(_ context.Context, widgetID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.WidgetID == widgetID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every appended event in order, for assertions.
func (s *InMemoryStore) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}
