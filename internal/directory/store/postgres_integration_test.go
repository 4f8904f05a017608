//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"juntas/internal/directory/models"
	"juntas/internal/directory/store"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/sentinel"
	"juntas/pkg/testutil/containers"
)

type PostgresDirectorySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresDirectorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresDirectorySuite))
}

func (s *PostgresDirectorySuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresDirectorySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "cases", "patients", "users"))
}

func (s *PostgresDirectorySuite) TestUsers() {
	ctx := context.Background()
	u := &models.User{
		ID:           id.UserID(uuid.New()),
		Email:        "Ana@Hospital.org",
		FullName:     "Ana Paz",
		Role:         id.RoleMedicalDirector,
		PasswordHash: "$2a$04$hash",
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	s.Require().NoError(s.store.CreateUser(ctx, u))

	s.Run("email lookup is case insensitive", func() {
		got, err := s.store.FindUserByEmail(ctx, "ana@hospital.org")
		s.Require().NoError(err)
		s.Equal(u.ID, got.ID)
		s.Equal(id.RoleMedicalDirector, got.Role)
		s.Equal("$2a$04$hash", got.PasswordHash)
	})

	s.Run("duplicate email conflicts", func() {
		dup := *u
		dup.ID = id.UserID(uuid.New())
		dup.Email = "ANA@hospital.org"
		s.True(errors.Is(s.store.CreateUser(ctx, &dup), sentinel.ErrConflict))
	})

	s.Run("unknown user", func() {
		_, err := s.store.FindUser(ctx, id.UserID(uuid.New()))
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	users, err := s.store.ListUsers(ctx)
	s.Require().NoError(err)
	s.Len(users, 1)
}

func (s *PostgresDirectorySuite) TestPatients() {
	ctx := context.Background()
	email := "luis@mail.org"
	p := &models.Patient{
		ID:             id.PatientID(uuid.New()),
		FullName:       "Luis Gomez",
		DocumentNumber: "28999111",
		Email:          &email,
		CreatedAt:      time.Now().UTC(),
	}
	s.Require().NoError(s.store.CreatePatient(ctx, p))

	got, err := s.store.FindPatient(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Luis Gomez", got.FullName)
	s.Require().NotNil(got.Email)
	s.Nil(got.Phone)

	dup := *p
	dup.ID = id.PatientID(uuid.New())
	s.True(errors.Is(s.store.CreatePatient(ctx, &dup), sentinel.ErrConflict))
}
