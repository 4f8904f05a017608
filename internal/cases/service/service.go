// Package service implements the case lifecycle: creation, scoped listing,
// field and status updates, dictamen submission, document slots and
// cascading deletion. Every entry point consults the access guard before
// touching case rows.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"juntas/internal/cases/access"
	"juntas/internal/cases/metrics"
	"juntas/internal/cases/models"
	dirmodels "juntas/internal/directory/models"
	id "juntas/pkg/domain"
	dErrors "juntas/pkg/domain-errors"
	"juntas/pkg/platform/audit"
	"juntas/pkg/platform/sentinel"
	"juntas/pkg/requestcontext"
)

// DefaultRequiredCategories is the size of the mandated document checklist.
const DefaultRequiredCategories = 10

type CaseStore interface {
	Create(ctx context.Context, c *models.Case) error
	FindByID(ctx context.Context, caseID id.CaseID) (*models.Case, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Case, int, error)
	Update(ctx context.Context, c *models.Case) error
	Delete(ctx context.Context, caseID id.CaseID) error
}

type DocumentStore interface {
	PutSlot(ctx context.Context, up models.SlotUpload) (*models.DocumentSlot, error)
	ListSlots(ctx context.Context, caseID id.CaseID) ([]*models.DocumentSlot, error)
	GetSlotContent(ctx context.Context, caseID id.CaseID, docID id.DocumentID) (*models.SlotContent, error)
	CountDistinctCategories(ctx context.Context, caseID id.CaseID) (int, error)
	CountDistinctCategoriesFor(ctx context.Context, caseIDs []id.CaseID) (map[id.CaseID]int, error)
	DeleteAllForCase(ctx context.Context, caseID id.CaseID) error
}

type DictamenStore interface {
	Upsert(ctx context.Context, caseID id.CaseID, payload json.RawMessage, at time.Time) (*models.Dictamen, error)
	Get(ctx context.Context, caseID id.CaseID) (*models.Dictamen, error)
	DeleteForCase(ctx context.Context, caseID id.CaseID) error
}

// Directory resolves the patient and evaluator references of a case.
type Directory interface {
	FindPatient(ctx context.Context, patientID id.PatientID) (*dirmodels.Patient, error)
	FindUser(ctx context.Context, userID id.UserID) (*dirmodels.User, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
	List(ctx context.Context, caseID id.CaseID) ([]audit.Event, error)
}

// Notifier must return without waiting for delivery.
type Notifier interface {
	CaseCreated(ctx context.Context, c *models.Case, patient *dirmodels.Patient, evaluator *dirmodels.User)
}

// TxRunner runs fn inside one transaction carried by ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// directRunner is used with in-memory stores, which have nothing to commit.
type directRunner struct{}

func (directRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Service struct {
	cases     CaseStore
	documents DocumentStore
	dictamens DictamenStore
	directory Directory
	guard     *access.Guard

	tx       TxRunner
	audit    AuditPublisher
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	required int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithTxRunner is ignored for nil so in-memory wiring keeps direct execution.
func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithRequiredCategories sets how many distinct document categories an
// approved case needs before it stops reading as INCOMPLETE.
func WithRequiredCategories(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.required = n
		}
	}
}

func New(cases CaseStore, documents DocumentStore, dictamens DictamenStore, directory Directory, guard *access.Guard, opts ...Option) *Service {
	s := &Service{
		cases:     cases,
		documents: documents,
		dictamens: dictamens,
		directory: directory,
		guard:     guard,
		tx:        directRunner{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("juntas/cases"),
		required:  DefaultRequiredCategories,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequiredCategories reports the configured checklist size.
func (s *Service) RequiredCategories() int {
	return s.required
}

func (s *Service) startSpan(ctx context.Context, name string, caseID id.CaseID) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "cases."+name)
	if !caseID.IsNil() {
		span.SetAttributes(attribute.String("case.id", caseID.String()))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// loadCase fetches a case and checks action against it. A missing case and
// an invisible one produce the same error.
func (s *Service) loadCase(ctx context.Context, caseID id.CaseID, action access.Action) (*models.Case, requestcontext.AuthActor, error) {
	actor := requestcontext.Actor(ctx)
	if actor.IsZero() {
		return nil, actor, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, actor, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		return nil, actor, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case")
	}
	if err := s.guard.Authorize(actor, c, action); err != nil {
		return nil, actor, err
	}
	return c, actor, nil
}

func (s *Service) summarize(ctx context.Context, c *models.Case) (models.CaseSummary, error) {
	n, err := s.documents.CountDistinctCategories(ctx, c.ID)
	if err != nil {
		return models.CaseSummary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count documents")
	}
	return s.summary(c, n), nil
}

func (s *Service) summary(c *models.Case, distinct int) models.CaseSummary {
	return models.CaseSummary{
		Case:           c,
		DocumentsCount: distinct,
		Required:       s.required,
		DisplayStatus:  models.DisplayStatus(c.Status, distinct, s.required),
	}
}

func (s *Service) emit(ctx context.Context, actor requestcontext.AuthActor, caseID id.CaseID, action audit.AuditEvent, detail string) error {
	if s.audit == nil {
		return nil
	}
	err := s.audit.Emit(ctx, audit.Event{
		CaseID:    caseID,
		Action:    action,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Detail:    detail,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

// asServiceError keeps coded errors and hides everything else behind msg.
func asServiceError(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
