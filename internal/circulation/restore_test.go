package circulation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraledger/internal/catalog"
	"libraledger/internal/journal"
	"libraledger/internal/membership"
	"libraledger/internal/store"
)

// populate runs a short lending history through svc.
func populate(t *testing.T, svc Service) (membership.User, []catalog.Book) {
	t.Helper()
	ctx := context.Background()

	var books []catalog.Book
	for _, title := range []string{"Dune", "Emma", "Ulysses"} {
		b, err := svc.AddBook(ctx, catalog.BookDraft{Title: title, Author: "Someone", ISBN: "978-0"})
		require.NoError(t, err)
		books = append(books, b)
	}
	u, err := svc.RegisterUser(ctx, membership.UserDraft{Name: "Reader", Email: "r@example.com", Password: "pw", Role: "MEMBER"})
	require.NoError(t, err)

	require.NoError(t, svc.BorrowBook(ctx, u.ID, books[2].ID))
	require.NoError(t, svc.BorrowBook(ctx, u.ID, books[0].ID))
	require.NoError(t, svc.BorrowBookUntil(ctx, u.ID, books[1].ID, time.Now().AddDate(0, 1, 0)))
	require.NoError(t, svc.ReturnBook(ctx, u.ID, books[0].ID))
	return u, books
}

func assertRestored(t *testing.T, want, got Service, userID membership.UserID) {
	t.Helper()
	ctx := context.Background()

	assert.Equal(t, want.FindAllBooks(ctx), got.FindAllBooks(ctx))
	assert.Equal(t, want.FindAllUsers(ctx), got.FindAllUsers(ctx))
	assert.Equal(t, want.FindAvailableBooks(ctx), got.FindAvailableBooks(ctx))

	wantLoans, err := want.GetBorrowedBooks(ctx, userID)
	require.NoError(t, err)
	gotLoans, err := got.GetBorrowedBooks(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, wantLoans, gotLoans)

	wantDue, err := want.GetLoans(ctx, userID)
	require.NoError(t, err)
	gotDue, err := got.GetLoans(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, wantDue, gotDue)
}

func TestRestoreFromMemoryJournal(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemory()
	original := newFixture(t, WithJournal(j))
	u, _ := populate(t, original.svc)

	restored := newFixture(t, WithJournal(j))
	require.NoError(t, restored.svc.Restore(ctx, j))
	assertRestored(t, original.svc, restored.svc, u.ID)

	next, err := restored.svc.AddBook(ctx, catalog.BookDraft{Title: "After restart"})
	require.NoError(t, err)
	assert.Equal(t, catalog.BookID(4), next.ID)

	nextUser, err := restored.svc.RegisterUser(ctx, membership.UserDraft{Name: "Late", Email: "l@example.com", Role: "LIBRARIAN"})
	require.NoError(t, err)
	assert.Equal(t, u.ID+1, nextUser.ID)
}

func TestRestoreFromSQLiteJournal(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "journal.db")

	j, err := journal.OpenSQL(ctx, journal.DriverSQLite, dsn)
	require.NoError(t, err)
	original := newFixture(t, WithJournal(j))
	u, books := populate(t, original.svc)
	require.NoError(t, j.Close())

	reopened, err := journal.OpenSQL(ctx, journal.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	restored := newFixture(t, WithJournal(reopened))
	require.NoError(t, restored.svc.Restore(ctx, reopened))
	assertRestored(t, original.svc, restored.svc, u.ID)

	// The restored service keeps journaling where the old one stopped.
	require.NoError(t, restored.svc.ReturnBook(ctx, u.ID, books[2].ID))
	events, err := reopened.Load(ctx)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, BookReturnedEventType, last.Type)
	assert.Equal(t, int64(len(events)), last.Seq)
}

func TestRestoreDefaultsMissingDueDate(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemory()
	_, _ = j.Append(ctx, catalog.BookAddedEventType, catalog.BookAddedEvent{ID: 1, Title: "T"})
	_, _ = j.Append(ctx, membership.UserRegisteredEventType, membership.UserRegisteredEvent{ID: 1, Name: "A", Role: membership.RoleMember})
	borrowed, err := j.Append(ctx, BookBorrowedEventType, map[string]int64{"user_id": 1, "book_id": 1})
	require.NoError(t, err)

	f := newFixture(t, WithLoanPeriod(72*time.Hour))
	require.NoError(t, f.svc.Restore(ctx, j))

	loans, err := f.svc.GetLoans(ctx, 1)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.True(t, borrowed.RecordedAt.Add(72*time.Hour).Equal(loans[0].DueDate))
}

func TestRestoreRejectsInconsistentHistory(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		events func(j *journal.Memory)
		target error
	}{
		{
			name: "loan of unknown book",
			events: func(j *journal.Memory) {
				_, _ = j.Append(ctx, membership.UserRegisteredEventType, membership.UserRegisteredEvent{ID: 1, Name: "A", Role: membership.RoleMember})
				_, _ = j.Append(ctx, BookBorrowedEventType, BookBorrowedEvent{UserID: 1, BookID: 7})
			},
			target: store.ErrBookNotFound,
		},
		{
			name: "double loan",
			events: func(j *journal.Memory) {
				_, _ = j.Append(ctx, catalog.BookAddedEventType, catalog.BookAddedEvent{ID: 1, Title: "T"})
				_, _ = j.Append(ctx, membership.UserRegisteredEventType, membership.UserRegisteredEvent{ID: 1, Name: "A", Role: membership.RoleMember})
				_, _ = j.Append(ctx, BookBorrowedEventType, BookBorrowedEvent{UserID: 1, BookID: 1})
				_, _ = j.Append(ctx, BookBorrowedEventType, BookBorrowedEvent{UserID: 1, BookID: 1})
			},
			target: ErrBookUnavailable,
		},
		{
			name: "return without loan",
			events: func(j *journal.Memory) {
				_, _ = j.Append(ctx, catalog.BookAddedEventType, catalog.BookAddedEvent{ID: 1, Title: "T"})
				_, _ = j.Append(ctx, BookReturnedEventType, BookReturnedEvent{UserID: 1, BookID: 1})
			},
			target: ErrNotBorrowed,
		},
		{
			name: "duplicate book id",
			events: func(j *journal.Memory) {
				_, _ = j.Append(ctx, catalog.BookAddedEventType, catalog.BookAddedEvent{ID: 1, Title: "T"})
				_, _ = j.Append(ctx, catalog.BookAddedEventType, catalog.BookAddedEvent{ID: 1, Title: "T again"})
			},
			target: store.ErrDuplicate,
		},
		{
			name: "unknown event type",
			events: func(j *journal.Memory) {
				_, _ = j.Append(ctx, "BookBurned", map[string]int{"book_id": 1})
			},
			target: ErrReplay,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := journal.NewMemory()
			tt.events(j)

			err := newFixture(t).svc.Restore(ctx, j)
			assert.ErrorIs(t, err, ErrReplay)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}
