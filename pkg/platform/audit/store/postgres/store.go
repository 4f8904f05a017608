package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "juntas/pkg/domain"
	audit "juntas/pkg/platform/audit"
	txcontext "juntas/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table. Rows carry no
// foreign key to cases so the trail survives case deletion.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts the event, joining the transaction in ctx when present.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.UUID(event.ID)
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	category := event.Category
	if category == "" {
		category = event.Action.Category()
	}

	var caseID *uuid.UUID
	if !event.CaseID.IsNil() {
		cid := uuid.UUID(event.CaseID)
		caseID = &cid
	}
	var actorID *uuid.UUID
	if !event.ActorID.IsNil() {
		aid := uuid.UUID(event.ActorID)
		actorID = &aid
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, case_id, action, actor_id, actor_role,
			detail, request_id, client_ip, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		eventID,
		string(category),
		event.Timestamp,
		caseID,
		string(event.Action),
		actorID,
		string(event.ActorRole),
		event.Detail,
		event.RequestID,
		event.ClientIP,
		event.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByCase returns the case's events oldest first.
func (s *Store) ListByCase(ctx context.Context, caseID id.CaseID) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, case_id, action, actor_id, actor_role,
			detail, request_id, client_ip, user_agent
		FROM audit_events
		WHERE case_id = $1
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]audit.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (audit.Event, error) {
	var (
		eventID  uuid.UUID
		category string
		caseID   uuid.NullUUID
		action   string
		actorID  uuid.NullUUID
		role     string
		event    audit.Event
	)
	if err := rows.Scan(
		&eventID,
		&category,
		&event.Timestamp,
		&caseID,
		&action,
		&actorID,
		&role,
		&event.Detail,
		&event.RequestID,
		&event.ClientIP,
		&event.UserAgent,
	); err != nil {
		return audit.Event{}, fmt.Errorf("scan audit event: %w", err)
	}
	event.ID = id.EventID(eventID)
	event.Category = audit.EventCategory(category)
	event.Action = audit.AuditEvent(action)
	event.ActorRole = id.Role(role)
	if caseID.Valid {
		event.CaseID = id.CaseID(caseID.UUID)
	}
	if actorID.Valid {
		event.ActorID = id.UserID(actorID.UUID)
	}
	return event, nil
}
