package memory

import (
	"context"
	"slices"
	"sync"

	id "juntas/pkg/domain"
	audit "juntas/pkg/platform/audit"
)

// InMemoryStore keeps events in append order. Events outlive the case they describe.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByCase returns the case's events oldest first.
func (s *InMemoryStore) ListByCase(_ context.Context, caseID id.CaseID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Event, 0)
	for _, e := range s.events {
		if e.CaseID == caseID {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b audit.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}

// ListAll returns a copy of every stored event.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}
