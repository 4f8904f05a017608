// Package service manages staff accounts and patient records.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"juntas/internal/cases/access"
	"juntas/internal/directory/models"
	id "juntas/pkg/domain"
	dErrors "juntas/pkg/domain-errors"
	"juntas/pkg/email"
	"juntas/pkg/platform/audit"
	"juntas/pkg/platform/sentinel"
	"juntas/pkg/requestcontext"
)

const minPasswordLength = 8

type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUser(ctx context.Context, userID id.UserID) (*models.User, error)
	FindUserByEmail(ctx context.Context, addr string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	CreatePatient(ctx context.Context, p *models.Patient) error
	FindPatient(ctx context.Context, patientID id.PatientID) (*models.Patient, error)
}

// Lookup serves point reads; usually the Redis cache in front of Store.
type Lookup interface {
	FindPatient(ctx context.Context, patientID id.PatientID) (*models.Patient, error)
	FindUser(ctx context.Context, userID id.UserID) (*models.User, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store  Store
	lookup Lookup
	guard  *access.Guard
	audit  AuditPublisher
	logger *slog.Logger
	cost   int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLookup routes point reads through l instead of the store.
func WithLookup(l Lookup) Option {
	return func(s *Service) {
		s.lookup = l
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

func New(store Store, guard *access.Guard, opts ...Option) *Service {
	s := &Service{
		store:  store,
		lookup: store,
		guard:  guard,
		logger: slog.Default(),
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateUser(ctx context.Context, cmd models.CreateUserCommand) (*models.User, error) {
	actor := requestcontext.Actor(ctx)
	if err := s.guard.AuthorizeGlobal(actor, access.ActionManageUsers); err != nil {
		return nil, err
	}

	u, err := s.newUser(cmd, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a user with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	if err := s.emit(ctx, audit.Event{
		Action:    audit.EventUserCreated,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Detail:    u.ID.String() + " " + string(u.Role),
	}); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user created",
		"user_id", u.ID,
		"role", u.Role,
		"request_id", requestcontext.RequestID(ctx),
	)
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	if err := s.guard.AuthorizeGlobal(requestcontext.Actor(ctx), access.ActionManageUsers); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, nil
}

// EnsureBootstrapAdmin creates the configured administrator unless the
// email is already registered. It bypasses authorization and is only
// called at startup.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, addr, name, password string) (*models.User, bool, error) {
	normalized, ok := email.Normalize(addr)
	if !ok {
		return nil, false, dErrors.New(dErrors.CodeValidation, "bootstrap admin email is invalid")
	}
	existing, err := s.store.FindUserByEmail(ctx, normalized)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up bootstrap admin")
	}

	u, err := s.newUser(models.CreateUserCommand{
		Email:    normalized,
		FullName: name,
		Role:     id.RoleAdmin,
		Password: password,
	}, requestcontext.Now(ctx))
	if err != nil {
		return nil, false, err
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, false, nil
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create bootstrap admin")
	}
	return u, true, nil
}

func (s *Service) RegisterPatient(ctx context.Context, cmd models.RegisterPatientCommand) (*models.Patient, error) {
	actor := requestcontext.Actor(ctx)
	if err := s.guard.AuthorizeGlobal(actor, access.ActionCreate); err != nil {
		return nil, err
	}

	p := &models.Patient{
		ID:             id.PatientID(uuid.New()),
		FullName:       strings.TrimSpace(cmd.FullName),
		DocumentNumber: strings.TrimSpace(cmd.DocumentNumber),
		Email:          cmd.Email,
		Phone:          cmd.Phone,
		CreatedAt:      requestcontext.Now(ctx),
	}
	fields := map[string]string{}
	if p.FullName == "" {
		fields["fullName"] = "is required"
	}
	if p.DocumentNumber == "" {
		fields["documentNumber"] = "is required"
	}
	if len(fields) > 0 {
		return nil, dErrors.Validation(fields)
	}
	if p.Email != nil {
		normalized, ok := email.Normalize(*p.Email)
		if !ok {
			return nil, dErrors.Validation(map[string]string{"email": "must be a valid email address"})
		}
		p.Email = &normalized
	}
	if err := s.store.CreatePatient(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a patient with this document number already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register patient")
	}

	if err := s.emit(ctx, audit.Event{
		Action:    audit.EventPatientRegistered,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Detail:    p.ID.String(),
	}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, patientID id.PatientID) (*models.Patient, error) {
	if err := s.guard.AuthorizeGlobal(requestcontext.Actor(ctx), access.ActionView); err != nil {
		return nil, err
	}
	p, err := s.lookup.FindPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load patient")
	}
	return p, nil
}

func (s *Service) newUser(cmd models.CreateUserCommand, now time.Time) (*models.User, error) {
	fields := map[string]string{}
	normalized, ok := email.Normalize(cmd.Email)
	if !ok {
		fields["email"] = "must be a valid email address"
	}
	if !cmd.Role.IsValid() {
		fields["role"] = "must be one of EVALUATING_PHYSICIAN, MEDICAL_DIRECTOR, HR, ADMIN"
	}
	if len(cmd.Password) < minPasswordLength {
		fields["password"] = "must be at least 8 characters"
	}
	if len(fields) > 0 {
		return nil, dErrors.Validation(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.cost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "password cannot be hashed")
	}

	name := strings.TrimSpace(cmd.FullName)
	if name == "" {
		name = email.DisplayName(normalized)
	}
	return &models.User{
		ID:           id.UserID(uuid.New()),
		Email:        normalized,
		FullName:     name,
		Role:         cmd.Role,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    now,
	}, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}
