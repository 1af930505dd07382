// Package store holds the error kinds shared by the in-memory record stores.
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	// Entity-specific variants wrap it, so errors.Is(err, ErrNotFound) matches all of them.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when input for a new record is malformed.
	// It is wrapped with the failing field detail.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate is returned when a restored record reuses an existing identifier.
	ErrDuplicate = errors.New("already exists")

	ErrBookNotFound = fmt.Errorf("%w: book", ErrNotFound)
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)
)
