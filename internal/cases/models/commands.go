package models

import (
	"encoding/json"
	"time"

	id "juntas/pkg/domain"
)

// CreateCaseCommand carries validated input for case creation.
type CreateCaseCommand struct {
	PatientID     id.PatientID
	EvaluatorID   *id.UserID
	ScheduledDate *time.Time
	ScheduledTime *string
	Location      *string
	Notes         string
}

// UpdateCaseCommand is a partial update; nil fields are left untouched.
type UpdateCaseCommand struct {
	Status             *Status
	Notes              *string
	FitnessVerdict     *string
	PrincipalDiagnosis *string
	DecisionDate       *time.Time
	DirectorRemarks    *string
}

// HasFieldEdits reports whether any non-status field is set.
func (c UpdateCaseCommand) HasFieldEdits() bool {
	return c.Notes != nil || c.FitnessVerdict != nil || c.PrincipalDiagnosis != nil ||
		c.DecisionDate != nil || c.DirectorRemarks != nil
}

// IsEmpty reports whether the command changes nothing.
func (c UpdateCaseCommand) IsEmpty() bool {
	return c.Status == nil && !c.HasFieldEdits()
}

// SubmitDictamenCommand upserts the opinion and, when Finalize is set, sends
// the case back to PENDING for review.
type SubmitDictamenCommand struct {
	Payload  json.RawMessage
	Finalize bool
}

// UploadDocumentCommand stores one document under a category.
type UploadDocumentCommand struct {
	Category string
	Name     string
	MimeType string
	Content  []byte
	Size     int64
}

// ListCasesQuery is the caller-facing list request before scoping.
type ListCasesQuery struct {
	EvaluatorID *id.UserID
	Status      *Status
	Page        int
	PageSize    int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (Page-1)*PageSize far from int overflow; pages past the
	// data are empty anyway.
	MaxPage = 1_000_000
)

// Normalize clamps paging to sane bounds.
func (q *ListCasesQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
}
