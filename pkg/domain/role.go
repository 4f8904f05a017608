package domain

import dErrors "juntas/pkg/domain-errors"

// Role is the single, token-scoped authority of an actor.
// Invariant: the value must be one of the four supported roles.
//
// Usage: construct via ParseRole at trust boundaries; direct casting bypasses
// validation.
type Role string

const (
	RoleEvaluatingPhysician Role = "EVALUATING_PHYSICIAN"
	RoleMedicalDirector     Role = "MEDICAL_DIRECTOR"
	RoleHR                  Role = "HR"
	RoleAdmin               Role = "ADMIN"
)

var validRoles = map[Role]bool{
	RoleEvaluatingPhysician: true,
	RoleMedicalDirector:     true,
	RoleHR:                  true,
	RoleAdmin:               true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// IsEvaluatorClass reports whether actors with this role perform evaluations
// and may therefore be assigned as a case's evaluator.
func (r Role) IsEvaluatorClass() bool {
	return r == RoleEvaluatingPhysician || r == RoleMedicalDirector
}

func (r Role) String() string {
	return string(r)
}
