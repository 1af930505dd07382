package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraledger/internal/sequence"
	"libraledger/internal/store"
)

func TestRegisterUser(t *testing.T) {
	s := NewStore(sequence.New(), nil)

	u, err := s.Add("Test User", "test@example.com", "password", RoleMember)
	require.NoError(t, err)

	assert.Equal(t, UserID(1), u.ID)
	assert.Equal(t, "Test User", u.Name)
	assert.Equal(t, "test@example.com", u.Email)
	assert.Equal(t, "password", u.Password)
	assert.Equal(t, RoleMember, u.Role)
	assert.True(t, u.Active)

	got, err := s.Get(u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestRoleIsCaseInsensitive(t *testing.T) {
	s := NewStore(sequence.New(), nil)

	u, err := s.Add("Lib", "lib@example.com", "pw", Role("librarian"))
	require.NoError(t, err)
	assert.Equal(t, RoleLibrarian, u.Role)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		email   string
		role    Role
		message string
	}{
		{name: "missing name", user: "", email: "a@b.c", role: RoleMember, message: "name is required"},
		{name: "blank name", user: "   ", email: "a@b.c", role: RoleMember, message: "name is required"},
		{name: "missing email", user: "A", email: "", role: RoleMember, message: "email is required"},
		{name: "missing role", user: "A", email: "a@b.c", role: "", message: "role is required"},
		{name: "unknown role", user: "A", email: "a@b.c", role: "PIRATE", message: `role "PIRATE" is not recognized`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(sequence.New(), nil)

			_, err := s.Add(tt.user, tt.email, "pw", tt.role)
			require.ErrorIs(t, err, store.ErrValidation)
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, s.ListAll())
		})
	}
}

func TestRejectedRegistrationDoesNotConsumeID(t *testing.T) {
	s := NewStore(sequence.New(), nil)

	_, err := s.Add("", "", "", RoleMember)
	require.Error(t, err)

	u, err := s.Add("A", "a@example.com", "", RoleMember)
	require.NoError(t, err)
	assert.Equal(t, UserID(1), u.ID)
}

func TestConfiguredRoles(t *testing.T) {
	s := NewStore(sequence.New(), []Role{"reader", "ADMIN"})

	_, err := s.Add("A", "a@example.com", "pw", RoleMember)
	assert.ErrorIs(t, err, store.ErrValidation)

	u, err := s.Add("B", "b@example.com", "pw", "Reader")
	require.NoError(t, err)
	assert.Equal(t, Role("READER"), u.Role)
}

func TestDuplicateEmailsAreAllowed(t *testing.T) {
	s := NewStore(sequence.New(), nil)

	_, err := s.Add("A", "same@example.com", "pw", RoleMember)
	require.NoError(t, err)
	_, err = s.Add("B", "same@example.com", "pw", RoleMember)
	require.NoError(t, err)

	assert.Len(t, s.ListAll(), 2)
}

func TestGetUnknownUser(t *testing.T) {
	s := NewStore(sequence.New(), nil)

	_, err := s.Get(3)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestListAllInsertionOrder(t *testing.T) {
	s := NewStore(sequence.New(), nil)
	for _, name := range []string{"C", "A", "B"} {
		_, err := s.Add(name, name+"@example.com", "", RoleMember)
		require.NoError(t, err)
	}

	users := s.ListAll()
	require.Len(t, users, 3)
	assert.Equal(t, "C", users[0].Name)
	assert.Equal(t, "A", users[1].Name)
	assert.Equal(t, "B", users[2].Name)
}

func TestRestoreAndRemove(t *testing.T) {
	s := NewStore(sequence.New(), nil)

	require.NoError(t, s.Restore(User{ID: 9, Name: "Old", Email: "o@example.com", Role: RoleMember, Active: true}))
	assert.ErrorIs(t, s.Restore(User{ID: 9}), store.ErrDuplicate)

	u, err := s.Add("New", "n@example.com", "", RoleMember)
	require.NoError(t, err)
	assert.Equal(t, UserID(10), u.ID)

	require.NoError(t, s.Remove(u.ID))
	assert.ErrorIs(t, s.Remove(u.ID), store.ErrUserNotFound)
	assert.Len(t, s.ListAll(), 1)
}
