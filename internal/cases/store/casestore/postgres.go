package casestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"juntas/internal/cases/models"
	"juntas/internal/platform/postgres"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/sentinel"
	txcontext "juntas/pkg/platform/tx"
)

// Postgres persists cases in the cases table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const caseColumns = `id, patient_id, evaluator_id, status, scheduled_date, scheduled_time, location,
	notes, principal_diagnosis, fitness_verdict, director_remarks, decision_date, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, c *models.Case) error {
	query := `INSERT INTO cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		uuid.UUID(c.PatientID),
		uuid.UUID(c.EvaluatorID),
		string(c.Status),
		c.ScheduledDate,
		c.ScheduledTime,
		c.Location,
		c.Notes,
		c.PrincipalDiagnosis,
		c.FitnessVerdict,
		c.DirectorRemarks,
		c.DecisionDate,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("case %s: %w", c.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`
	row := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(caseID))
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("case %s: %w", caseID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find case: %w", err)
	}
	return c, nil
}

// List applies the evaluator scope in the WHERE clause; the total is counted
// under the same predicate.
func (s *Postgres) List(ctx context.Context, filter models.ListFilter) ([]*models.Case, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.EvaluatorID != nil {
		args = append(args, uuid.UUID(*filter.EvaluatorID))
		conds = append(conds, fmt.Sprintf("evaluator_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	exec := txcontext.ExecutorFor(ctx, s.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM cases`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}

	query := `SELECT ` + caseColumns + ` FROM cases` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	cases := make([]*models.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate cases: %w", err)
	}
	return cases, total, nil
}

func (s *Postgres) Update(ctx context.Context, c *models.Case) error {
	query := `
		UPDATE cases SET
			status = $2, notes = $3, principal_diagnosis = $4, fitness_verdict = $5,
			director_remarks = $6, decision_date = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		string(c.Status),
		c.Notes,
		c.PrincipalDiagnosis,
		c.FitnessVerdict,
		c.DirectorRemarks,
		c.DecisionDate,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	return requireOneRow(res, c.ID)
}

func (s *Postgres) Delete(ctx context.Context, caseID id.CaseID) error {
	res, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `DELETE FROM cases WHERE id = $1`, uuid.UUID(caseID))
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	return requireOneRow(res, caseID)
}

func requireOneRow(res sql.Result, caseID id.CaseID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("case %s: %w", caseID, sentinel.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (*models.Case, error) {
	var (
		caseID, patientID, evaluatorID uuid.UUID
		status                         string
		scheduledTime, location        sql.NullString
		diagnosis, verdict, remarks    sql.NullString
		decisionDate                   sql.NullTime
		c                              models.Case
	)
	if err := row.Scan(
		&caseID,
		&patientID,
		&evaluatorID,
		&status,
		&c.ScheduledDate,
		&scheduledTime,
		&location,
		&c.Notes,
		&diagnosis,
		&verdict,
		&remarks,
		&decisionDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.ID = id.CaseID(caseID)
	c.PatientID = id.PatientID(patientID)
	c.EvaluatorID = id.UserID(evaluatorID)
	c.Status = models.Status(status)
	c.ScheduledDate = c.ScheduledDate.UTC()
	c.ScheduledTime = nullString(scheduledTime)
	c.Location = nullString(location)
	c.PrincipalDiagnosis = nullString(diagnosis)
	c.FitnessVerdict = nullString(verdict)
	c.DirectorRemarks = nullString(remarks)
	if decisionDate.Valid {
		d := decisionDate.Time.UTC()
		c.DecisionDate = &d
	}
	return &c, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

