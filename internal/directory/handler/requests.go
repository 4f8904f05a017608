package handler

import (
	"strings"

	"juntas/internal/directory/models"
	id "juntas/pkg/domain"
	dErrors "juntas/pkg/domain-errors"
	platformstrings "juntas/pkg/platform/strings"
)

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	Password string `json:"password"`

	parsedRole id.Role
}

func (r *CreateUserRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Role = strings.ToUpper(strings.TrimSpace(r.Role))
}

func (r *CreateUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	fields := map[string]string{}
	if r.Email == "" {
		fields["email"] = "is required"
	}
	if r.Password == "" {
		fields["password"] = "is required"
	}
	role, err := id.ParseRole(r.Role)
	if err != nil {
		fields["role"] = "must be one of EVALUATING_PHYSICIAN, MEDICAL_DIRECTOR, HR, ADMIN"
	}
	if len(fields) > 0 {
		return dErrors.Validation(fields)
	}
	r.parsedRole = role
	return nil
}

func (r *CreateUserRequest) Command() models.CreateUserCommand {
	return models.CreateUserCommand{
		Email:    r.Email,
		FullName: r.FullName,
		Role:     r.parsedRole,
		Password: r.Password,
	}
}

// RegisterPatientRequest is the body of POST /patients.
type RegisterPatientRequest struct {
	FullName       string  `json:"fullName"`
	DocumentNumber string  `json:"documentNumber"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
}

func (r *RegisterPatientRequest) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.DocumentNumber = strings.TrimSpace(r.DocumentNumber)
	r.Email = platformstrings.TrimToNil(r.Email)
	r.Phone = platformstrings.TrimToNil(r.Phone)
}

func (r *RegisterPatientRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	fields := map[string]string{}
	if r.FullName == "" {
		fields["fullName"] = "is required"
	}
	if r.DocumentNumber == "" {
		fields["documentNumber"] = "is required"
	}
	if len(r.DocumentNumber) > 32 {
		fields["documentNumber"] = "must be at most 32 characters"
	}
	if len(fields) > 0 {
		return dErrors.Validation(fields)
	}
	return nil
}

func (r *RegisterPatientRequest) Command() models.RegisterPatientCommand {
	return models.RegisterPatientCommand{
		FullName:       r.FullName,
		DocumentNumber: r.DocumentNumber,
		Email:          r.Email,
		Phone:          r.Phone,
	}
}
