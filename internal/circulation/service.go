// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"libraledger/internal/catalog"
	"libraledger/internal/journal"
	"libraledger/internal/membership"
)

// Service is the lending service: the only entry point that mutates books, users and loans.
type Service interface {
	RegisterUser(ctx context.Context, draft membership.UserDraft) (membership.User, error)
	AddBook(ctx context.Context, draft catalog.BookDraft) (catalog.Book, error)

	BorrowBook(ctx context.Context, userID membership.UserID, bookID catalog.BookID) error
	// BorrowBookUntil is BorrowBook with an explicit due date. A zero due date means the
	// default loan period.
	BorrowBookUntil(ctx context.Context, userID membership.UserID, bookID catalog.BookID, due time.Time) error
	ReturnBook(ctx context.Context, userID membership.UserID, bookID catalog.BookID) error

	FindUserByID(ctx context.Context, id membership.UserID) (membership.User, error)
	FindBookByID(ctx context.Context, id catalog.BookID) (catalog.Book, error)
	FindAllUsers(ctx context.Context) []membership.User
	FindAllBooks(ctx context.Context) []catalog.Book
	FindAvailableBooks(ctx context.Context) []catalog.Book
	GetBorrowedBooks(ctx context.Context, userID membership.UserID) ([]catalog.Book, error)
	GetLoans(ctx context.Context, userID membership.UserID) ([]catalog.LoanedBook, error)

	// Restore replays journaled events into empty stores.
	Restore(ctx context.Context, r journal.Reader) error
}

// Appender is the write side of a journal.
type Appender interface {
	Append(ctx context.Context, eventType string, payload interface{}) (journal.Event, error)
}
