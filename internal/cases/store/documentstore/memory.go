// Package documentstore keeps at most one document per (case, category).
package documentstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"juntas/internal/cases/models"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/sentinel"
)

type storedSlot struct {
	slot    models.DocumentSlot
	content []byte
}

// InMemory indexes slots by case and category.
type InMemory struct {
	mu    sync.RWMutex
	slots map[id.CaseID]map[string]*storedSlot
}

func NewInMemory() *InMemory {
	return &InMemory{slots: make(map[id.CaseID]map[string]*storedSlot)}
}

// PutSlot inserts into a free category or replaces the occupant in place,
// keeping its identifier and creation time.
func (s *InMemory) PutSlot(_ context.Context, up models.SlotUpload) (*models.DocumentSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCategory, ok := s.slots[up.CaseID]
	if !ok {
		byCategory = make(map[string]*storedSlot)
		s.slots[up.CaseID] = byCategory
	}

	content := slices.Clone(up.Content)
	existing, ok := byCategory[up.Category]
	if !ok {
		existing = &storedSlot{slot: models.DocumentSlot{
			ID:        id.DocumentID(uuid.New()),
			CaseID:    up.CaseID,
			Category:  up.Category,
			CreatedAt: up.At,
		}}
		byCategory[up.Category] = existing
	}
	existing.slot.Name = up.Name
	existing.slot.MimeType = up.MimeType
	existing.slot.Size = up.Size
	existing.slot.HasContent = len(content) > 0
	existing.slot.UpdatedAt = up.At
	existing.content = content

	out := existing.slot
	return &out, nil
}

// ListSlots returns descriptors most recently updated first.
func (s *InMemory) ListSlots(_ context.Context, caseID id.CaseID) ([]*models.DocumentSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.DocumentSlot, 0, len(s.slots[caseID]))
	for _, st := range s.slots[caseID] {
		slot := st.slot
		out = append(out, &slot)
	}
	slices.SortFunc(out, func(a, b *models.DocumentSlot) int {
		if cmp := b.UpdatedAt.Compare(a.UpdatedAt); cmp != 0 {
			return cmp
		}
		return compareCategory(a.Category, b.Category)
	})
	return out, nil
}

// GetSlotContent returns ErrNotFound when the slot does not belong to the
// case or holds no bytes.
func (s *InMemory) GetSlotContent(_ context.Context, caseID id.CaseID, docID id.DocumentID) (*models.SlotContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.slots[caseID] {
		if st.slot.ID != docID {
			continue
		}
		if len(st.content) == 0 {
			break
		}
		return &models.SlotContent{
			Name:     st.slot.Name,
			MimeType: st.slot.MimeType,
			Content:  slices.Clone(st.content),
		}, nil
	}
	return nil, fmt.Errorf("document %s: %w", docID, sentinel.ErrNotFound)
}

func (s *InMemory) CountDistinctCategories(_ context.Context, caseID id.CaseID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots[caseID]), nil
}

// CountDistinctCategoriesFor batches the count for a page of cases. Cases
// without documents map to zero.
func (s *InMemory) CountDistinctCategoriesFor(_ context.Context, caseIDs []id.CaseID) (map[id.CaseID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[id.CaseID]int, len(caseIDs))
	for _, caseID := range caseIDs {
		out[caseID] = len(s.slots[caseID])
	}
	return out, nil
}

func (s *InMemory) DeleteAllForCase(_ context.Context, caseID id.CaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, caseID)
	return nil
}

func compareCategory(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
