package models

import (
	"encoding/json"
	"time"

	id "juntas/pkg/domain"
	dErrors "juntas/pkg/domain-errors"
)

// Status is the stored lifecycle state of a case.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// DisplayIncomplete is shown instead of APPROVED while the document checklist
// is not covered. It is never stored.
const DisplayIncomplete = "INCOMPLETE"

// ParseStatus validates a wire status value.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of DRAFT, PENDING, APPROVED, REJECTED")
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsDecision reports whether s is an approval outcome.
func (s Status) IsDecision() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsTerminal reports whether a case in s accepts no further edits.
func (s Status) IsTerminal() bool {
	return s.IsDecision()
}

func (s Status) String() string {
	return string(s)
}

// Case is the aggregate root for a fitness evaluation.
type Case struct {
	ID                 id.CaseID
	PatientID          id.PatientID
	EvaluatorID        id.UserID
	Status             Status
	ScheduledDate      time.Time
	ScheduledTime      *string
	Location           *string
	Notes              string
	PrincipalDiagnosis *string
	FitnessVerdict     *string
	DirectorRemarks    *string
	DecisionDate       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DisplayStatus applies the completeness derivation to the stored status.
func DisplayStatus(stored Status, distinctCategories, required int) string {
	if stored == StatusApproved && distinctCategories < required {
		return DisplayIncomplete
	}
	return string(stored)
}

// DocumentSlot describes a stored document. Content is never part of it.
type DocumentSlot struct {
	ID         id.DocumentID
	CaseID     id.CaseID
	Category   string
	Name       string
	MimeType   string
	Size       int64
	HasContent bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SlotUpload is the input to a document store put.
type SlotUpload struct {
	CaseID   id.CaseID
	Category string
	Name     string
	MimeType string
	Content  []byte
	Size     int64
	At       time.Time
}

// SlotContent is a document's raw bytes for download.
type SlotContent struct {
	Name     string
	MimeType string
	Content  []byte
}

// Dictamen is the medical opinion for a case. Payload is stored opaquely.
type Dictamen struct {
	ID        id.DictamenID
	CaseID    id.CaseID
	Payload   json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListFilter narrows a case listing. EvaluatorID is applied in the query.
type ListFilter struct {
	EvaluatorID *id.UserID
	Status      *Status
	Offset      int
	Limit       int
}

// CaseSummary is a case plus its read-time completeness facts.
type CaseSummary struct {
	Case           *Case
	DocumentsCount int
	Required       int
	DisplayStatus  string
}

// CaseDetail joins the case with its dictamen and document slots.
type CaseDetail struct {
	CaseSummary
	Dictamen  *Dictamen
	Documents []*DocumentSlot
}

// CaseList is one page of summaries.
type CaseList struct {
	Items    []CaseSummary
	Total    int
	Page     int
	PageSize int
}

// DictamenSubmission is the outcome of saving an opinion: the stored
// dictamen and the case as it reads afterwards.
type DictamenSubmission struct {
	Dictamen *Dictamen
	Summary  CaseSummary
}
