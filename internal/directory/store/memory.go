// Package store persists directory users and patients.
package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"juntas/internal/directory/models"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/sentinel"
)

// InMemory is injected per process; there is no package-level instance.
type InMemory struct {
	mu              sync.RWMutex
	users           map[id.UserID]*models.User
	usersByEmail    map[string]id.UserID
	patients        map[id.PatientID]*models.Patient
	patientsByDocNo map[string]id.PatientID
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:           make(map[id.UserID]*models.User),
		usersByEmail:    make(map[string]id.UserID),
		patients:        make(map[id.PatientID]*models.Patient),
		patientsByDocNo: make(map[string]id.PatientID),
	}
}

func (s *InMemory) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, taken := s.usersByEmail[key]; taken {
		return fmt.Errorf("user email %s: %w", key, sentinel.ErrConflict)
	}
	copied := *u
	s.users[u.ID] = &copied
	s.usersByEmail[key] = u.ID
	return nil
}

func (s *InMemory) FindUser(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (s *InMemory) FindUserByEmail(_ context.Context, addr string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.usersByEmail[strings.ToLower(addr)]
	if !ok {
		return nil, fmt.Errorf("user email %s: %w", addr, sentinel.ErrNotFound)
	}
	copied := *s.users[userID]
	return &copied, nil
}

// ListUsers orders by creation time, then email.
func (s *InMemory) ListUsers(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		copied := *u
		out = append(out, &copied)
	}
	slices.SortFunc(out, func(a, b *models.User) int {
		if cmp := a.CreatedAt.Compare(b.CreatedAt); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.Email, b.Email)
	})
	return out, nil
}

func (s *InMemory) CreatePatient(_ context.Context, p *models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.patientsByDocNo[p.DocumentNumber]; taken {
		return fmt.Errorf("patient document %s: %w", p.DocumentNumber, sentinel.ErrConflict)
	}
	copied := *p
	s.patients[p.ID] = &copied
	s.patientsByDocNo[p.DocumentNumber] = p.ID
	return nil
}

func (s *InMemory) FindPatient(_ context.Context, patientID id.PatientID) (*models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[patientID]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", patientID, sentinel.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}
