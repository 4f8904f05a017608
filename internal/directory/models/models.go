package models

import (
	"time"

	id "juntas/pkg/domain"
)

// Patient is the subject of a case. Contact fields are optional.
type Patient struct {
	ID             id.PatientID
	FullName       string
	DocumentNumber string
	Email          *string
	Phone          *string
	CreatedAt      time.Time
}

// User is a staff member who can authenticate. Email is stored lower-cased.
type User struct {
	ID           id.UserID
	Email        string
	FullName     string
	Role         id.Role
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// CanEvaluate reports whether the user may be assigned as a case evaluator.
func (u *User) CanEvaluate() bool {
	return u.Active && u.Role.IsEvaluatorClass()
}

type CreateUserCommand struct {
	Email    string
	FullName string
	Role     id.Role
	Password string
}

type RegisterPatientCommand struct {
	FullName       string
	DocumentNumber string
	Email          *string
	Phone          *string
}
