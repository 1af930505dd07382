// internal/membership/implementation.go
package membership

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"libraledger/internal/sequence"
	"libraledger/internal/store"
)

// memoryStore implements the Store interface.
type memoryStore struct {
	mu       sync.RWMutex
	ids      *sequence.Generator
	validate *validator.Validate
	users    map[UserID]*User
	order    []UserID
}

// NewStore creates an empty in-memory membership store. roles is the recognized role set;
// DefaultRoles is used when it is empty. It panics if the role validator cannot be built.
func NewStore(ids *sequence.Generator, roles []Role) Store {
	if len(roles) == 0 {
		roles = DefaultRoles
	}
	normalized := make([]Role, 0, len(roles))
	for _, r := range roles {
		normalized = append(normalized, ParseRole(string(r)))
	}

	validate, err := newValidator(normalized)
	if err != nil {
		panic(err)
	}

	return &memoryStore{
		ids:      ids,
		validate: validate,
		users:    make(map[UserID]*User),
	}
}

// Add registers an active user. The password is stored as supplied.
func (s *memoryStore) Add(name, email, password string, role Role) (User, error) {
	reg := registration{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Role:  ParseRole(string(role)),
	}
	if err := s.validate.Struct(reg); err != nil {
		return User{}, validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := &User{
		ID:       UserID(s.ids.Next()),
		Name:     reg.Name,
		Email:    reg.Email,
		Password: password,
		Role:     reg.Role,
		Active:   true,
	}
	s.users[u.ID] = u
	s.order = append(s.order, u.ID)
	return *u, nil
}

// Get returns a copy of the user with the given ID.
func (s *memoryStore) Get(id UserID) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: id %d", store.ErrUserNotFound, id)
	}
	return *u, nil
}

func (s *memoryStore) ListAll() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, *s.users[id])
	}
	return users
}

func (s *memoryStore) Restore(u User) error {
	if u.ID <= 0 {
		return fmt.Errorf("%w: user id must be positive", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("user %d: %w", u.ID, store.ErrDuplicate)
	}
	restored := u
	s.users[u.ID] = &restored
	s.order = append(s.order, u.ID)
	s.ids.Observe(int64(u.ID))
	return nil
}

func (s *memoryStore) Remove(id UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("%w: id %d", store.ErrUserNotFound, id)
	}
	delete(s.users, id)
	s.order = slices.DeleteFunc(s.order, func(other UserID) bool { return other == id })
	return nil
}
