package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "juntas/pkg/domain"
	dErrors "juntas/pkg/domain-errors"
)

func TestCreateUserRequestNormalizesRole(t *testing.T) {
	req := &CreateUserRequest{Email: " a@b.org ", Role: " hr ", Password: "password1"}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, id.RoleHR, req.Command().Role)
	assert.Equal(t, "a@b.org", req.Command().Email)
}

func TestRegisterPatientRequestValidation(t *testing.T) {
	req := &RegisterPatientRequest{}
	req.Normalize()
	err := req.Validate()
	de, ok := dErrors.As(err)
	require.True(t, ok)
	assert.Contains(t, de.Fields, "fullName")
	assert.Contains(t, de.Fields, "documentNumber")
}
