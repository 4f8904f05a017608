package documentstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"juntas/internal/cases/models"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/sentinel"
	txcontext "juntas/pkg/platform/tx"
)

// Postgres stores slots in case_documents. The (case_id, category) unique
// constraint makes replacement an upsert.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) PutSlot(ctx context.Context, up models.SlotUpload) (*models.DocumentSlot, error) {
	var content []byte
	if len(up.Content) > 0 {
		content = up.Content
	}

	query := `
		INSERT INTO case_documents (id, case_id, category, name, mime_type, content, size_bytes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (case_id, category) DO UPDATE SET
			name = EXCLUDED.name,
			mime_type = EXCLUDED.mime_type,
			content = EXCLUDED.content,
			size_bytes = EXCLUDED.size_bytes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`
	var (
		docID uuid.UUID
		slot  = models.DocumentSlot{
			CaseID:     up.CaseID,
			Category:   up.Category,
			Name:       up.Name,
			MimeType:   up.MimeType,
			Size:       up.Size,
			HasContent: content != nil,
		}
	)
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query,
		uuid.New(),
		uuid.UUID(up.CaseID),
		up.Category,
		up.Name,
		up.MimeType,
		content,
		up.Size,
		up.At,
	).Scan(&docID, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert document: %w", err)
	}
	slot.ID = id.DocumentID(docID)
	return &slot, nil
}

func (s *Postgres) ListSlots(ctx context.Context, caseID id.CaseID) ([]*models.DocumentSlot, error) {
	query := `
		SELECT id, category, name, mime_type, size_bytes, content IS NOT NULL, created_at, updated_at
		FROM case_documents
		WHERE case_id = $1
		ORDER BY updated_at DESC, category
	`
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	slots := make([]*models.DocumentSlot, 0)
	for rows.Next() {
		var (
			docID uuid.UUID
			slot  = models.DocumentSlot{CaseID: caseID}
		)
		if err := rows.Scan(&docID, &slot.Category, &slot.Name, &slot.MimeType, &slot.Size,
			&slot.HasContent, &slot.CreatedAt, &slot.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		slot.ID = id.DocumentID(docID)
		slots = append(slots, &slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return slots, nil
}

func (s *Postgres) GetSlotContent(ctx context.Context, caseID id.CaseID, docID id.DocumentID) (*models.SlotContent, error) {
	query := `
		SELECT name, mime_type, content
		FROM case_documents
		WHERE case_id = $1 AND id = $2 AND content IS NOT NULL
	`
	var out models.SlotContent
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(caseID), uuid.UUID(docID)).
		Scan(&out.Name, &out.MimeType, &out.Content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", docID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get document content: %w", err)
	}
	return &out, nil
}

func (s *Postgres) CountDistinctCategories(ctx context.Context, caseID id.CaseID) (int, error) {
	var n int
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT category) FROM case_documents WHERE case_id = $1`, uuid.UUID(caseID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count document categories: %w", err)
	}
	return n, nil
}

func (s *Postgres) CountDistinctCategoriesFor(ctx context.Context, caseIDs []id.CaseID) (map[id.CaseID]int, error) {
	out := make(map[id.CaseID]int, len(caseIDs))
	if len(caseIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(caseIDs))
	for i, caseID := range caseIDs {
		out[caseID] = 0
		ids[i] = caseID.String()
	}

	query := `
		SELECT case_id, COUNT(DISTINCT category)
		FROM case_documents
		WHERE case_id = ANY($1::uuid[])
		GROUP BY case_id
	`
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("count document categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			caseID uuid.UUID
			n      int
		)
		if err := rows.Scan(&caseID, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out[id.CaseID(caseID)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return out, nil
}

func (s *Postgres) DeleteAllForCase(ctx context.Context, caseID id.CaseID) error {
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `DELETE FROM case_documents WHERE case_id = $1`, uuid.UUID(caseID))
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}
