package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"juntas/internal/cases/access"
	"juntas/internal/cases/models"
	dirmodels "juntas/internal/directory/models"
	id "juntas/pkg/domain"
	dErrors "juntas/pkg/domain-errors"
	"juntas/pkg/platform/audit"
	"juntas/pkg/platform/sentinel"
	"juntas/pkg/requestcontext"
)

// Create opens a PENDING case. Without an explicit evaluator the case is
// assigned to the actor, which only evaluator-class roles may rely on.
func (s *Service) Create(ctx context.Context, cmd models.CreateCaseCommand) (_ *models.CaseSummary, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Create", id.CaseID{})
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("create", start)

	actor := requestcontext.Actor(ctx)
	if err := s.guard.AuthorizeGlobal(actor, access.ActionCreate); err != nil {
		return nil, err
	}

	var evaluatorID id.UserID
	switch {
	case cmd.EvaluatorID != nil:
		evaluatorID = *cmd.EvaluatorID
	case actor.Role.IsEvaluatorClass():
		evaluatorID = actor.ID
	default:
		return nil, dErrors.Validation(map[string]string{"evaluatorId": "is required when the caller is not an evaluator"})
	}
	if err := s.guard.AuthorizeCreate(actor, evaluatorID); err != nil {
		return nil, err
	}

	patient, evaluator, err := s.resolveParticipants(ctx, cmd.PatientID, evaluatorID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	scheduled := dateOnly(now)
	if cmd.ScheduledDate != nil {
		scheduled = dateOnly(*cmd.ScheduledDate)
	}
	c := &models.Case{
		ID:            id.CaseID(uuid.New()),
		PatientID:     patient.ID,
		EvaluatorID:   evaluator.ID,
		Status:        models.StatusPending,
		ScheduledDate: scheduled,
		ScheduledTime: cmd.ScheduledTime,
		Location:      cmd.Location,
		Notes:         cmd.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.cases.Create(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "case already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create case")
		}
		return s.emit(ctx, actor, c.ID, audit.EventCaseCreated, "evaluator "+evaluator.ID.String())
	})
	if err != nil {
		return nil, asServiceError(err, "failed to create case")
	}

	s.metrics.IncrementCreated()
	s.logger.InfoContext(ctx, "case created",
		"case_id", c.ID,
		"evaluator_id", c.EvaluatorID,
		"actor_id", actor.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.notifier != nil {
		s.notifier.CaseCreated(ctx, c, patient, evaluator)
	}

	summary := s.summary(c, 0)
	return &summary, nil
}

func (s *Service) resolveParticipants(ctx context.Context, patientID id.PatientID, evaluatorID id.UserID) (*dirmodels.Patient, *dirmodels.User, error) {
	patient, err := s.directory.FindPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.Validation(map[string]string{"patientId": "patient not found"})
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load patient")
	}
	evaluator, err := s.directory.FindUser(ctx, evaluatorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.Validation(map[string]string{"evaluatorId": "user not found"})
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evaluator")
	}
	if !evaluator.CanEvaluate() {
		return nil, nil, dErrors.Validation(map[string]string{"evaluatorId": "user cannot be assigned as evaluator"})
	}
	return patient, evaluator, nil
}

// List returns one page of cases within the actor's scope. Evaluators are
// filtered in the query so totals never include other evaluators' cases.
func (s *Service) List(ctx context.Context, q models.ListCasesQuery) (_ *models.CaseList, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "List", id.CaseID{})
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("list", start)

	actor := requestcontext.Actor(ctx)
	if err := s.guard.AuthorizeGlobal(actor, access.ActionView); err != nil {
		return nil, err
	}
	q.Normalize()
	result := &models.CaseList{Items: []models.CaseSummary{}, Page: q.Page, PageSize: q.PageSize}

	filter := models.ListFilter{
		EvaluatorID: q.EvaluatorID,
		Status:      q.Status,
		Offset:      (q.Page - 1) * q.PageSize,
		Limit:       q.PageSize,
	}
	if scope := s.guard.ListScope(actor); scope != nil {
		if q.EvaluatorID != nil && *q.EvaluatorID != *scope {
			return result, nil
		}
		filter.EvaluatorID = scope
	}

	cases, total, err := s.cases.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list cases")
	}
	ids := make([]id.CaseID, 0, len(cases))
	for _, c := range cases {
		ids = append(ids, c.ID)
	}
	counts, err := s.documents.CountDistinctCategoriesFor(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count documents")
	}
	for _, c := range cases {
		result.Items = append(result.Items, s.summary(c, counts[c.ID]))
	}
	result.Total = total
	return result, nil
}

// Get assembles the case with its dictamen and document slots.
func (s *Service) Get(ctx context.Context, caseID id.CaseID) (_ *models.CaseDetail, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Get", caseID)
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("get", start)

	c, _, err := s.loadCase(ctx, caseID, access.ActionView)
	if err != nil {
		return nil, err
	}

	detail := &models.CaseDetail{}
	var distinct int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.dictamens.Get(gctx, caseID)
		if err != nil {
			return fmt.Errorf("load dictamen: %w", err)
		}
		detail.Dictamen = d
		return nil
	})
	g.Go(func() error {
		slots, err := s.documents.ListSlots(gctx, caseID)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		detail.Documents = slots
		return nil
	})
	g.Go(func() error {
		n, err := s.documents.CountDistinctCategories(gctx, caseID)
		if err != nil {
			return fmt.Errorf("count documents: %w", err)
		}
		distinct = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case detail")
	}
	detail.CaseSummary = s.summary(c, distinct)
	return detail, nil
}

// Update applies a partial update. Decided cases are frozen; approval
// outcomes need the decide capability, everything else needs edit.
func (s *Service) Update(ctx context.Context, caseID id.CaseID, cmd models.UpdateCaseCommand) (_ *models.CaseSummary, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Update", caseID)
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("update", start)

	if cmd.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}
	c, actor, err := s.loadCase(ctx, caseID, access.ActionView)
	if err != nil {
		return nil, err
	}
	if cmd.Status != nil {
		if err := s.guard.AuthorizeStatusChange(actor, c, *cmd.Status); err != nil {
			return nil, err
		}
	}
	if cmd.HasFieldEdits() {
		if err := s.guard.Authorize(actor, c, access.ActionEdit); err != nil {
			return nil, err
		}
	}
	if c.Status.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeValidation, "case is already decided")
	}

	from := c.Status
	changed := applyUpdate(c, cmd)
	c.UpdatedAt = requestcontext.Now(ctx)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.cases.Update(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "case not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update case")
		}
		if len(changed) > 0 {
			if err := s.emit(ctx, actor, c.ID, audit.EventCaseUpdated, strings.Join(changed, ",")); err != nil {
				return err
			}
		}
		if c.Status != from {
			return s.emit(ctx, actor, c.ID, audit.EventCaseStatusChanged, string(from)+"->"+string(c.Status))
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "failed to update case")
	}

	if c.Status != from {
		s.metrics.IncrementTransition(c.Status.String())
		s.logger.InfoContext(ctx, "case status changed",
			"case_id", c.ID,
			"from", from,
			"to", c.Status,
			"actor_id", actor.ID,
			"actor_role", actor.Role,
		)
	}
	summary, err := s.summarize(ctx, c)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// applyUpdate mutates c and names the non-status fields it touched.
func applyUpdate(c *models.Case, cmd models.UpdateCaseCommand) []string {
	var changed []string
	if cmd.Status != nil {
		c.Status = *cmd.Status
	}
	if cmd.Notes != nil {
		c.Notes = *cmd.Notes
		changed = append(changed, "notes")
	}
	if cmd.FitnessVerdict != nil {
		c.FitnessVerdict = cmd.FitnessVerdict
		changed = append(changed, "fitnessVerdict")
	}
	if cmd.PrincipalDiagnosis != nil {
		c.PrincipalDiagnosis = cmd.PrincipalDiagnosis
		changed = append(changed, "principalDiagnosis")
	}
	if cmd.DecisionDate != nil {
		d := dateOnly(*cmd.DecisionDate)
		c.DecisionDate = &d
		changed = append(changed, "decisionDate")
	}
	if cmd.DirectorRemarks != nil {
		c.DirectorRemarks = cmd.DirectorRemarks
		changed = append(changed, "directorRemarks")
	}
	return changed
}

// Delete removes the case with its documents and dictamen. The audit trail
// is kept. The dictamen is removed only after the case rows commit, since
// its backend may not share the SQL transaction; a failure there leaves an
// unreachable opinion and is logged rather than returned.
func (s *Service) Delete(ctx context.Context, caseID id.CaseID) (err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Delete", caseID)
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("delete", start)

	c, actor, err := s.loadCase(ctx, caseID, access.ActionDelete)
	if err != nil {
		return err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.documents.DeleteAllForCase(ctx, c.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete documents")
		}
		if err := s.cases.Delete(ctx, c.ID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "case not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete case")
		}
		return s.emit(ctx, actor, c.ID, audit.EventCaseDeleted, "")
	})
	if err != nil {
		return asServiceError(err, "failed to delete case")
	}
	if err := s.dictamens.DeleteForCase(ctx, c.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete dictamen of deleted case",
			"case_id", c.ID,
			"error", err,
		)
	}

	s.metrics.IncrementDeleted()
	s.logger.InfoContext(ctx, "case deleted",
		"case_id", c.ID,
		"actor_id", actor.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// ListEvents returns the audit trail of a visible case, oldest first.
func (s *Service) ListEvents(ctx context.Context, caseID id.CaseID) ([]audit.Event, error) {
	if _, _, err := s.loadCase(ctx, caseID, access.ActionView); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []audit.Event{}, nil
	}
	events, err := s.audit.List(ctx, caseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case events")
	}
	return events, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
