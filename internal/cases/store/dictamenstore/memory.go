// Package dictamenstore keeps at most one medical opinion per case.
package dictamenstore

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"juntas/internal/cases/models"
	id "juntas/pkg/domain"
)

type InMemory struct {
	mu        sync.RWMutex
	dictamens map[id.CaseID]*models.Dictamen
}

func NewInMemory() *InMemory {
	return &InMemory{dictamens: make(map[id.CaseID]*models.Dictamen)}
}

// Upsert replaces the payload of an existing opinion or inserts a new one.
// The identifier is stable across replacements.
func (s *InMemory) Upsert(_ context.Context, caseID id.CaseID, payload json.RawMessage, at time.Time) (*models.Dictamen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dictamens[caseID]
	if !ok {
		d = &models.Dictamen{
			ID:        id.DictamenID(uuid.New()),
			CaseID:    caseID,
			CreatedAt: at,
		}
		s.dictamens[caseID] = d
	}
	d.Payload = slices.Clone(payload)
	d.UpdatedAt = at
	return cloneDictamen(d), nil
}

// Get returns nil without error when the case has no opinion.
func (s *InMemory) Get(_ context.Context, caseID id.CaseID) (*models.Dictamen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dictamens[caseID]
	if !ok {
		return nil, nil
	}
	return cloneDictamen(d), nil
}

func (s *InMemory) DeleteForCase(_ context.Context, caseID id.CaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dictamens, caseID)
	return nil
}

// Count is the number of stored opinions.
func (s *InMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dictamens)
}

func cloneDictamen(d *models.Dictamen) *models.Dictamen {
	out := *d
	out.Payload = slices.Clone(d.Payload)
	return &out
}
