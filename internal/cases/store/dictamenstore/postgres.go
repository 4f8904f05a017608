package dictamenstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"juntas/internal/cases/models"
	id "juntas/pkg/domain"
	txcontext "juntas/pkg/platform/tx"
)

// Postgres stores the payload as JSONB in dictamenes; case_id is unique.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Upsert(ctx context.Context, caseID id.CaseID, payload json.RawMessage, at time.Time) (*models.Dictamen, error) {
	query := `
		INSERT INTO dictamenes (id, case_id, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (case_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`
	var (
		dictamenID uuid.UUID
		d          = models.Dictamen{CaseID: caseID, Payload: payload}
	)
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query,
		uuid.New(),
		uuid.UUID(caseID),
		[]byte(payload),
		at,
	).Scan(&dictamenID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert dictamen: %w", err)
	}
	d.ID = id.DictamenID(dictamenID)
	return &d, nil
}

func (s *Postgres) Get(ctx context.Context, caseID id.CaseID) (*models.Dictamen, error) {
	query := `SELECT id, payload, created_at, updated_at FROM dictamenes WHERE case_id = $1`
	var (
		dictamenID uuid.UUID
		payload    []byte
		d          = models.Dictamen{CaseID: caseID}
	)
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(caseID)).
		Scan(&dictamenID, &payload, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dictamen: %w", err)
	}
	d.ID = id.DictamenID(dictamenID)
	d.Payload = json.RawMessage(payload)
	return &d, nil
}

func (s *Postgres) DeleteForCase(ctx context.Context, caseID id.CaseID) error {
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `DELETE FROM dictamenes WHERE case_id = $1`, uuid.UUID(caseID))
	if err != nil {
		return fmt.Errorf("delete dictamen: %w", err)
	}
	return nil
}
