package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"  Ana.Ruiz@Hospital.ORG ", "ana.ruiz@hospital.org", true},
		{"", "", false},
		{"not-an-email", "", false},
		{"Ana <ana@hospital.org>", "", false},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Maria Lopez", DisplayName("maria.lopez@hospital.org"))
	assert.Equal(t, "Juan Perez", DisplayName("JUAN_perez2@x.org"))
	assert.Equal(t, "Usuario", DisplayName("123@x.org"))
}
