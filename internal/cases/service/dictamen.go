package service

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"juntas/internal/cases/access"
	"juntas/internal/cases/models"
	id "juntas/pkg/domain"
	dErrors "juntas/pkg/domain-errors"
	"juntas/pkg/platform/audit"
	"juntas/pkg/requestcontext"
)

// SubmitDictamen upserts the case's opinion. Finalizing also copies the
// verdict, diagnosis and decision date onto the case and moves it to
// PENDING for review; a draft save leaves the case untouched.
func (s *Service) SubmitDictamen(ctx context.Context, caseID id.CaseID, cmd models.SubmitDictamenCommand) (_ *models.DictamenSubmission, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "SubmitDictamen", caseID)
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("submit_dictamen", start)

	if !isJSONObject(cmd.Payload) {
		return nil, dErrors.Validation(map[string]string{"dictamen": "must be a JSON object"})
	}
	c, actor, err := s.loadCase(ctx, caseID, access.ActionEdit)
	if err != nil {
		return nil, err
	}
	if cmd.Finalize && c.Status.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeValidation, "case is already decided")
	}

	now := requestcontext.Now(ctx)
	from := c.Status
	var saved *models.Dictamen
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		d, err := s.dictamens.Upsert(ctx, c.ID, cmd.Payload, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save dictamen")
		}
		saved = d

		if !cmd.Finalize {
			return s.emit(ctx, actor, c.ID, audit.EventDictamenSaved, "")
		}
		models.ProjectDictamen(cmd.Payload).Apply(c)
		c.Status = models.StatusPending
		c.UpdatedAt = now
		if err := s.cases.Update(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update case from dictamen")
		}
		return s.emit(ctx, actor, c.ID, audit.EventDictamenFinalized, string(from)+"->"+string(c.Status))
	})
	if err != nil {
		return nil, asServiceError(err, "failed to save dictamen")
	}

	s.metrics.IncrementDictamenSaved(cmd.Finalize)
	if c.Status != from {
		s.metrics.IncrementTransition(c.Status.String())
	}
	s.logger.InfoContext(ctx, "dictamen saved",
		"case_id", c.ID,
		"finalize", cmd.Finalize,
		"actor_id", actor.ID,
	)

	summary, err := s.summarize(ctx, c)
	if err != nil {
		return nil, err
	}
	return &models.DictamenSubmission{Dictamen: saved, Summary: summary}, nil
}

// GetDictamen returns nil without error when the case has no opinion yet.
func (s *Service) GetDictamen(ctx context.Context, caseID id.CaseID) (*models.Dictamen, error) {
	if _, _, err := s.loadCase(ctx, caseID, access.ActionView); err != nil {
		return nil, err
	}
	d, err := s.dictamens.Get(ctx, caseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dictamen")
	}
	return d, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}
