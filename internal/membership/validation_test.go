package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraledger/internal/store"
)

func TestNewValidatorRegistersRoleTag(t *testing.T) {
	v, err := newValidator([]Role{RoleMember})
	require.NoError(t, err)

	assert.NoError(t, v.Var(string(RoleMember), "role"))
	assert.Error(t, v.Var("LIBRARIAN", "role"))
	assert.NoError(t, v.Struct(registration{Name: "A", Email: "a@example.com", Role: RoleMember}))
}

func TestValidationErrorNamesField(t *testing.T) {
	v, err := newValidator(DefaultRoles)
	require.NoError(t, err)

	tests := []struct {
		name string
		reg  registration
		want string
	}{
		{"missing name", registration{Email: "a@example.com", Role: RoleMember}, "name is required"},
		{"missing email", registration{Name: "A", Role: RoleMember}, "email is required"},
		{"unknown role", registration{Name: "A", Email: "a@example.com", Role: "ADMIN"}, `role "ADMIN" is not recognized`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validationError(v.Struct(tt.reg))
			assert.ErrorIs(t, err, store.ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
