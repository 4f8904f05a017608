// Package casestore persists case rows.
package casestore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"juntas/internal/cases/models"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/sentinel"
)

// InMemory is a map-backed case store. Returned cases are copies.
type InMemory struct {
	mu    sync.RWMutex
	cases map[id.CaseID]*models.Case
}

func NewInMemory() *InMemory {
	return &InMemory{cases: make(map[id.CaseID]*models.Case)}
}

func (s *InMemory) Create(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cases[c.ID]; exists {
		return fmt.Errorf("case %s: %w", c.ID, sentinel.ErrConflict)
	}
	s.cases[c.ID] = cloneCase(c)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, caseID id.CaseID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", caseID, sentinel.ErrNotFound)
	}
	return cloneCase(c), nil
}

// List filters before counting so a scoped caller never learns the size of
// the unscoped set.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Case, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Case, 0)
	for _, c := range s.cases {
		if filter.EvaluatorID != nil && c.EvaluatorID != *filter.EvaluatorID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		matched = append(matched, c)
	}
	slices.SortFunc(matched, func(a, b *models.Case) int {
		if cmp := b.CreatedAt.Compare(a.CreatedAt); cmp != 0 {
			return cmp
		}
		return compareIDs(a.ID, b.ID)
	})

	total := len(matched)
	start := max(0, min(filter.Offset, total))
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}

	page := make([]*models.Case, 0, end-start)
	for _, c := range matched[start:end] {
		page = append(page, cloneCase(c))
	}
	return page, total, nil
}

func (s *InMemory) Update(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; !ok {
		return fmt.Errorf("case %s: %w", c.ID, sentinel.ErrNotFound)
	}
	s.cases[c.ID] = cloneCase(c)
	return nil
}

func (s *InMemory) Delete(_ context.Context, caseID id.CaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[caseID]; !ok {
		return fmt.Errorf("case %s: %w", caseID, sentinel.ErrNotFound)
	}
	delete(s.cases, caseID)
	return nil
}

func cloneCase(c *models.Case) *models.Case {
	out := *c
	out.ScheduledTime = clonePtr(c.ScheduledTime)
	out.Location = clonePtr(c.Location)
	out.PrincipalDiagnosis = clonePtr(c.PrincipalDiagnosis)
	out.FitnessVerdict = clonePtr(c.FitnessVerdict)
	out.DirectorRemarks = clonePtr(c.DirectorRemarks)
	out.DecisionDate = clonePtr(c.DecisionDate)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func compareIDs(a, b id.CaseID) int {
	return slices.Compare(a[:], b[:])
}
