package memory

import (
	"context"
	"sync"

	"caseflow/internal/audit"
)

type key struct {
	resourceType string
	resourceID   string
}

// InMemoryStore keeps audit events per resource. Used by tests and
// single-process deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[key][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[key][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[key][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{resourceType: event.ResourceType, resourceID: event.ResourceID}
	s.events[k] = append(s.events[k], event)
	return nil
}

func (s *InMemoryStore) ListByResource(_ context.Context, resourceType, resourceID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := key{resourceType: resourceType, resourceID: resourceID}
	return append([]audit.Event{}, s.events[k]...), nil
}

// ListAll returns all events across all resources (admin-only operation).
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []audit.Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	return all, nil
}
