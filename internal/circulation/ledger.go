package circulation

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"libraledger/internal/catalog"
	"libraledger/internal/membership"
)

// Loan is one entry in a user's loan set.
type Loan struct {
	BookID  catalog.BookID
	DueDate time.Time
}

// Ledger records which user holds which books. It is the source of truth for ownership;
// Book.Available is kept in step with it by the service.
type Ledger struct {
	mu      sync.RWMutex
	byUser  map[membership.UserID][]Loan
	holders map[catalog.BookID]membership.UserID
}

func NewLedger() *Ledger {
	return &Ledger{
		byUser:  make(map[membership.UserID][]Loan),
		holders: make(map[catalog.BookID]membership.UserID),
	}
}

// RecordBorrow adds bookID to userID's loan set, due back at due. It fails with
// ErrAlreadyBorrowed if any user, including userID, already holds the book.
func (l *Ledger) RecordBorrow(userID membership.UserID, bookID catalog.BookID, due time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if holder, ok := l.holders[bookID]; ok {
		return fmt.Errorf("%w: book %d held by user %d", ErrAlreadyBorrowed, bookID, holder)
	}
	l.holders[bookID] = userID
	l.byUser[userID] = append(l.byUser[userID], Loan{BookID: bookID, DueDate: due})
	return nil
}

// RecordReturn removes bookID from userID's loan set.
func (l *Ledger) RecordReturn(userID membership.UserID, bookID catalog.BookID) error {
	_, _, err := l.recordReturn(userID, bookID)
	return err
}

// recordReturn removes the loan and reports it with its position in the user's set,
// so a failed return can put it back in place.
func (l *Ledger) recordReturn(userID membership.UserID, bookID catalog.BookID) (int, Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if holder, ok := l.holders[bookID]; !ok || holder != userID {
		return -1, Loan{}, fmt.Errorf("%w: book %d, user %d", ErrNotBorrowed, bookID, userID)
	}
	delete(l.holders, bookID)

	loans := l.byUser[userID]
	pos := slices.IndexFunc(loans, func(ln Loan) bool { return ln.BookID == bookID })
	loan := loans[pos]
	loans = slices.Delete(loans, pos, pos+1)
	if len(loans) == 0 {
		delete(l.byUser, userID)
	} else {
		l.byUser[userID] = loans
	}
	return pos, loan, nil
}

// reinstate undoes recordReturn, restoring loan at pos.
func (l *Ledger) reinstate(userID membership.UserID, loan Loan, pos int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if holder, ok := l.holders[loan.BookID]; ok {
		return fmt.Errorf("%w: book %d held by user %d", ErrAlreadyBorrowed, loan.BookID, holder)
	}
	loans := l.byUser[userID]
	pos = min(max(pos, 0), len(loans))
	l.holders[loan.BookID] = userID
	l.byUser[userID] = slices.Insert(loans, pos, loan)
	return nil
}

// LoansOf returns the books userID holds, in the order they were borrowed.
func (l *Ledger) LoansOf(userID membership.UserID) []catalog.BookID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]catalog.BookID, 0, len(l.byUser[userID]))
	for _, ln := range l.byUser[userID] {
		ids = append(ids, ln.BookID)
	}
	return ids
}

// Loans is LoansOf with due dates.
func (l *Ledger) Loans(userID membership.UserID) []Loan {
	l.mu.RLock()
	defer l.mu.RUnlock()

	loans := make([]Loan, len(l.byUser[userID]))
	copy(loans, l.byUser[userID])
	return loans
}

// Holder reports who holds bookID, if anyone.
func (l *Ledger) Holder(bookID catalog.BookID) (membership.UserID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.holders[bookID]
	return id, ok
}

// OnLoan returns the number of books currently lent out.
func (l *Ledger) OnLoan() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.holders)
}
