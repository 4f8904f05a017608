package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"juntas/internal/directory/models"
	"juntas/internal/platform/postgres"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/sentinel"
	txcontext "juntas/pkg/platform/tx"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const userColumns = `id, email, full_name, role, password_hash, active, created_at`

func (s *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(u.ID), strings.ToLower(u.Email), u.FullName, string(u.Role), u.PasswordHash, u.Active, u.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("user email %s: %w", u.Email, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Postgres) FindUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, uuid.UUID(userID))
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *Postgres) FindUserByEmail(ctx context.Context, addr string) (*models.User, error) {
	row := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(addr))
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user email %s: %w", addr, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (s *Postgres) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

const patientColumns = `id, full_name, document_number, email, phone, created_at`

func (s *Postgres) CreatePatient(ctx context.Context, p *models.Patient) error {
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx,
		`INSERT INTO patients (`+patientColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(p.ID), p.FullName, p.DocumentNumber, p.Email, p.Phone, p.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("patient document %s: %w", p.DocumentNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (s *Postgres) FindPatient(ctx context.Context, patientID id.PatientID) (*models.Patient, error) {
	var (
		pid         uuid.UUID
		addr, phone sql.NullString
		p           models.Patient
	)
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1`, uuid.UUID(patientID)).
		Scan(&pid, &p.FullName, &p.DocumentNumber, &addr, &phone, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("patient %s: %w", patientID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find patient: %w", err)
	}
	p.ID = id.PatientID(pid)
	if addr.Valid {
		p.Email = &addr.String
	}
	if phone.Valid {
		p.Phone = &phone.String
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		uid  uuid.UUID
		role string
		u    models.User
	)
	if err := row.Scan(&uid, &u.Email, &u.FullName, &role, &u.PasswordHash, &u.Active, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.ID = id.UserID(uid)
	u.Role = id.Role(role)
	return &u, nil
}
