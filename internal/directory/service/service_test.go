package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"juntas/internal/cases/access"
	"juntas/internal/directory/models"
	"juntas/internal/directory/store"
	id "juntas/pkg/domain"
	dErrors "juntas/pkg/domain-errors"
	"juntas/pkg/platform/audit"
	"juntas/pkg/platform/audit/publisher"
	auditmemory "juntas/pkg/platform/audit/store/memory"
	"juntas/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	audit   *auditmemory.InMemoryStore
	service *Service
	admin   requestcontext.AuthActor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.audit = auditmemory.NewInMemoryStore()
	s.service = New(s.store, access.New(),
		WithAuditPublisher(publisher.New(s.audit)),
		WithHashCost(bcrypt.MinCost),
	)
	s.admin = requestcontext.AuthActor{ID: id.UserID(uuid.New()), Role: id.RoleAdmin}
}

func (s *ServiceSuite) as(actor requestcontext.AuthActor) context.Context {
	return requestcontext.WithActor(context.Background(), actor)
}

func (s *ServiceSuite) TestCreateUser() {
	s.Run("admin creates user with hashed password and normalized email", func() {
		u, err := s.service.CreateUser(s.as(s.admin), models.CreateUserCommand{
			Email:    "  Maria.Lopez@Hospital.org ",
			Role:     id.RoleEvaluatingPhysician,
			Password: "correct-horse",
		})
		s.Require().NoError(err)
		s.Equal("maria.lopez@hospital.org", u.Email)
		s.Equal("Maria Lopez", u.FullName)
		s.True(u.Active)
		s.NoError(bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct-horse")))

		events, err := s.audit.ListAll(context.Background())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.EventUserCreated, events[0].Action)
	})

	s.Run("duplicate email is a conflict", func() {
		_, err := s.service.CreateUser(s.as(s.admin), models.CreateUserCommand{
			Email:    "maria.lopez@hospital.org",
			Role:     id.RoleHR,
			Password: "another-pass",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("non-admin is forbidden", func() {
		director := requestcontext.AuthActor{ID: id.UserID(uuid.New()), Role: id.RoleMedicalDirector}
		_, err := s.service.CreateUser(s.as(director), models.CreateUserCommand{
			Email: "x@hospital.org", Role: id.RoleHR, Password: "password1",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("invalid input reports every field", func() {
		_, err := s.service.CreateUser(s.as(s.admin), models.CreateUserCommand{
			Email: "not-an-email", Role: id.Role("NURSE"), Password: "short",
		})
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodeValidation, de.Code)
		s.Contains(de.Fields, "email")
		s.Contains(de.Fields, "role")
		s.Contains(de.Fields, "password")
	})
}

func (s *ServiceSuite) TestListUsersRequiresAdmin() {
	hr := requestcontext.AuthActor{ID: id.UserID(uuid.New()), Role: id.RoleHR}
	_, err := s.service.ListUsers(s.as(hr))
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.ListUsers(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestEnsureBootstrapAdminIsIdempotent() {
	ctx := context.Background()
	first, created, err := s.service.EnsureBootstrapAdmin(ctx, "Root@Juntas.local", "Root", "bootstrap-pass")
	s.Require().NoError(err)
	s.True(created)
	s.Equal(id.RoleAdmin, first.Role)

	second, created, err := s.service.EnsureBootstrapAdmin(ctx, "root@juntas.local", "Root", "bootstrap-pass")
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)
}

func (s *ServiceSuite) TestPatients() {
	evaluator := requestcontext.AuthActor{ID: id.UserID(uuid.New()), Role: id.RoleEvaluatingPhysician}
	hr := requestcontext.AuthActor{ID: id.UserID(uuid.New()), Role: id.RoleHR}
	contact := "Ana.Ruiz@Mail.com"

	p, err := s.service.RegisterPatient(s.as(evaluator), models.RegisterPatientCommand{
		FullName:       " Ana Ruiz ",
		DocumentNumber: "30111222",
		Email:          &contact,
	})
	s.Require().NoError(err)
	s.Equal("Ana Ruiz", p.FullName)
	s.Equal("ana.ruiz@mail.com", *p.Email)

	s.Run("HR can read but not register", func() {
		got, err := s.service.GetPatient(s.as(hr), p.ID)
		s.Require().NoError(err)
		s.Equal(p.ID, got.ID)

		_, err = s.service.RegisterPatient(s.as(hr), models.RegisterPatientCommand{FullName: "X", DocumentNumber: "1"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("duplicate document number conflicts", func() {
		_, err := s.service.RegisterPatient(s.as(evaluator), models.RegisterPatientCommand{FullName: "Other", DocumentNumber: "30111222"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("missing fields are validation errors", func() {
		_, err := s.service.RegisterPatient(s.as(evaluator), models.RegisterPatientCommand{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown patient is not found", func() {
		_, err := s.service.GetPatient(s.as(hr), id.PatientID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
