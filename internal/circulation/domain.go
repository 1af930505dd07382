// internal/circulation/domain.go
package circulation

import (
	"errors"
	"time"

	"libraledger/internal/catalog"
	"libraledger/internal/membership"
)

var (
	// ErrBookUnavailable is returned when borrowing a book that is already on loan.
	ErrBookUnavailable = errors.New("book is not available")

	// ErrNotBorrowed is returned when returning a book the user does not hold.
	ErrNotBorrowed = errors.New("book is not borrowed by this user")

	// ErrAlreadyBorrowed is the ledger's own double-loan check. The service reports it
	// wrapped together with ErrBookUnavailable.
	ErrAlreadyBorrowed = errors.New("book is already in a loan set")

	// ErrReplay is returned when journaled events cannot be applied consistently.
	ErrReplay = errors.New("journal replay failed")
)

// DefaultLoanPeriod is how long a loan runs when the borrower names no due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

const (
	BookBorrowedEventType = "BookBorrowed"
	BookReturnedEventType = "BookReturned"
)

// BookBorrowedEvent is journaled when a book goes on loan.
type BookBorrowedEvent struct {
	UserID  membership.UserID `json:"user_id"`
	BookID  catalog.BookID    `json:"book_id"`
	DueDate time.Time         `json:"due_date"`
}

// BookReturnedEvent is journaled when a book comes back.
type BookReturnedEvent struct {
	UserID membership.UserID `json:"user_id"`
	BookID catalog.BookID    `json:"book_id"`
}

// LoanRequest is the body of the borrow and return endpoints. DueDate is optional and
// only read when borrowing.
type LoanRequest struct {
	UserID  membership.UserID `json:"user_id"`
	BookID  catalog.BookID    `json:"book_id"`
	DueDate time.Time         `json:"due_date,omitzero"`
}
