package audit

import (
	"context"
	"time"

	id "juntas/pkg/domain"
)

// EventCategory classifies audit events by their retention needs.
type EventCategory string

const (
	// CategoryCompliance covers decisions and deletions that must be retained.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine edits and uploads.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	EventCaseCreated       AuditEvent = "case_created"
	EventCaseUpdated       AuditEvent = "case_updated"
	EventCaseStatusChanged AuditEvent = "case_status_changed"
	EventCaseDeleted       AuditEvent = "case_deleted"
	EventDictamenSaved     AuditEvent = "dictamen_saved"
	EventDictamenFinalized AuditEvent = "dictamen_finalized"
	EventDocumentStored    AuditEvent = "document_stored"
	EventUserCreated       AuditEvent = "user_created"
	EventPatientRegistered AuditEvent = "patient_registered"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCaseCreated:       CategoryCompliance,
	EventCaseStatusChanged: CategoryCompliance,
	EventCaseDeleted:       CategoryCompliance,
	EventDictamenFinalized: CategoryCompliance,
	EventUserCreated:       CategoryCompliance,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event records one mutation performed by an actor. CaseID is nil for
// directory events (user and patient management).
type Event struct {
	ID        id.EventID
	Category  EventCategory
	Timestamp time.Time
	CaseID    id.CaseID
	Action    AuditEvent
	ActorID   id.UserID
	ActorRole id.Role
	// Detail is a short human readable summary, e.g. "PENDING -> APPROVED".
	Detail    string
	RequestID string
	ClientIP  string
	UserAgent string
}

// Store persists audit events. Postgres implementations join the caller's
// transaction when one is carried in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCase(ctx context.Context, caseID id.CaseID) ([]Event, error)
}
