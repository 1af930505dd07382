// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"libraledger/internal/catalog"
	"libraledger/internal/membership"
	"libraledger/internal/store"
)

const instrumentationName = "libraledger/circulation"

// service implements the Service interface.
//
// mu makes every mutating call one unit of work: lookups, store and ledger changes and the
// journal append happen under the write lock, and reads never see a half-applied change.
type service struct {
	mu      sync.RWMutex
	books   catalog.Store
	users   membership.Store
	ledger  *Ledger
	journal Appender
	logger  *slog.Logger
	tracer  trace.Tracer

	now        func() time.Time
	loanPeriod time.Duration

	borrows    metric.Int64Counter
	returns    metric.Int64Counter
	rejections metric.Int64Counter
}

// Option configures the lending service.
type Option func(*service)

// WithJournal records every completed mutation in j.
func WithJournal(j Appender) Option {
	return func(s *service) { s.journal = j }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *service) { s.logger = l }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *service) { s.tracer = tp.Tracer(instrumentationName) }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *service) { s.initMetrics(mp.Meter(instrumentationName)) }
}

// WithLoanPeriod sets how long a loan runs when no due date is given.
func WithLoanPeriod(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.loanPeriod = d
		}
	}
}

// WithClock replaces time.Now for due date defaults and checks.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewService creates a new lending service over the given stores.
func NewService(books catalog.Store, users membership.Store, ledger *Ledger, opts ...Option) Service {
	s := &service{
		books:  books,
		users:  users,
		ledger: ledger,
		logger: slog.Default(),
		tracer: otel.Tracer(instrumentationName),

		now:        time.Now,
		loanPeriod: DefaultLoanPeriod,
	}
	s.initMetrics(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) initMetrics(meter metric.Meter) {
	var err error
	if s.borrows, err = meter.Int64Counter("lending.borrows",
		metric.WithDescription("Books lent out")); err != nil {
		s.borrows = noop.Int64Counter{}
	}
	if s.returns, err = meter.Int64Counter("lending.returns",
		metric.WithDescription("Books brought back")); err != nil {
		s.returns = noop.Int64Counter{}
	}
	if s.rejections, err = meter.Int64Counter("lending.rejections",
		metric.WithDescription("Lending operations refused, by reason")); err != nil {
		s.rejections = noop.Int64Counter{}
	}
}

// RegisterUser adds an active user.
func (s *service) RegisterUser(ctx context.Context, draft membership.UserDraft) (user membership.User, err error) {
	ctx, span := s.tracer.Start(ctx, "lending.register_user")
	defer func() { s.finish(ctx, span, "register_user", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err = s.users.Add(draft.Name, draft.Email, draft.Password, membership.ParseRole(draft.Role))
	if err != nil {
		return membership.User{}, err
	}
	span.SetAttributes(attribute.Int64("user.id", int64(user.ID)))

	err = s.record(ctx, membership.UserRegisteredEventType, membership.UserRegisteredEvent{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Password: user.Password,
		Role:     user.Role,
	})
	if err != nil {
		s.compensate(ctx, "remove registered user", func() error { return s.users.Remove(user.ID) })
		return membership.User{}, err
	}

	return user, nil
}

// AddBook puts a new book on the shelf.
func (s *service) AddBook(ctx context.Context, draft catalog.BookDraft) (book catalog.Book, err error) {
	ctx, span := s.tracer.Start(ctx, "lending.add_book")
	defer func() { s.finish(ctx, span, "add_book", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	book = s.books.Add(draft.Title, draft.Author, draft.ISBN)
	span.SetAttributes(attribute.Int64("book.id", int64(book.ID)))

	err = s.record(ctx, catalog.BookAddedEventType, catalog.BookAddedEvent{
		ID:     book.ID,
		Title:  book.Title,
		Author: book.Author,
		ISBN:   book.ISBN,
	})
	if err != nil {
		s.compensate(ctx, "remove added book", func() error { return s.books.Remove(book.ID) })
		return catalog.Book{}, err
	}

	return book, nil
}

// BorrowBook lends bookID to userID for the default loan period.
func (s *service) BorrowBook(ctx context.Context, userID membership.UserID, bookID catalog.BookID) error {
	return s.BorrowBookUntil(ctx, userID, bookID, time.Time{})
}

// BorrowBookUntil lends bookID to userID until due. Either every step applies or none does.
func (s *service) BorrowBookUntil(ctx context.Context, userID membership.UserID, bookID catalog.BookID, due time.Time) (err error) {
	ctx, span := s.tracer.Start(ctx, "lending.borrow",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.Int64("book.id", int64(bookID)),
		),
	)
	defer func() { s.finish(ctx, span, "borrow", err) }()

	now := s.now()
	if due.IsZero() {
		due = now.Add(s.loanPeriod)
	} else if !due.After(now) {
		return fmt.Errorf("%w: due date %s is not in the future", store.ErrValidation, due.Format(time.RFC3339))
	}
	due = due.UTC()
	span.SetAttributes(attribute.String("loan.due", due.Format(time.RFC3339)))

	s.mu.Lock()
	defer s.mu.Unlock()

	// Step 1: Resolve the user
	if _, err := s.users.Get(userID); err != nil {
		return err
	}

	// Step 2: Resolve the book and check it is on the shelf
	book, err := s.books.Get(bookID)
	if err != nil {
		return err
	}
	if !book.Available {
		return fmt.Errorf("%w: book %d", ErrBookUnavailable, bookID)
	}

	// Step 3: Take it off the shelf
	if err := s.books.SetAvailability(bookID, false); err != nil {
		return fmt.Errorf("mark book %d on loan: %w", bookID, err)
	}
	restoreShelf := func() error { return s.books.SetAvailability(bookID, true) }

	// Step 4: Record the loan
	if err := s.ledger.RecordBorrow(userID, bookID, due); err != nil {
		s.compensate(ctx, "restore availability", restoreShelf)
		return fmt.Errorf("%w: %w", ErrBookUnavailable, err)
	}

	// Step 5: Journal it
	if err := s.record(ctx, BookBorrowedEventType, BookBorrowedEvent{UserID: userID, BookID: bookID, DueDate: due}); err != nil {
		s.compensate(ctx, "remove loan", func() error { return s.ledger.RecordReturn(userID, bookID) })
		s.compensate(ctx, "restore availability", restoreShelf)
		return err
	}

	s.borrows.Add(ctx, 1)
	return nil
}

// ReturnBook takes bookID back from userID. Either every step applies or none does.
func (s *service) ReturnBook(ctx context.Context, userID membership.UserID, bookID catalog.BookID) (err error) {
	ctx, span := s.tracer.Start(ctx, "lending.return",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.Int64("book.id", int64(bookID)),
		),
	)
	defer func() { s.finish(ctx, span, "return", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.users.Get(userID); err != nil {
		return err
	}
	if _, err := s.books.Get(bookID); err != nil {
		return err
	}

	// Step 1: Remove the loan; fails with ErrNotBorrowed unless userID holds the book
	pos, loan, err := s.ledger.recordReturn(userID, bookID)
	if err != nil {
		return err
	}
	reinstateLoan := func() error { return s.ledger.reinstate(userID, loan, pos) }

	// Step 2: Put it back on the shelf
	if err := s.books.SetAvailability(bookID, true); err != nil {
		s.compensate(ctx, "reinstate loan", reinstateLoan)
		return fmt.Errorf("mark book %d available: %w", bookID, err)
	}

	// Step 3: Journal it
	if err := s.record(ctx, BookReturnedEventType, BookReturnedEvent{UserID: userID, BookID: bookID}); err != nil {
		s.compensate(ctx, "take book off shelf", func() error { return s.books.SetAvailability(bookID, false) })
		s.compensate(ctx, "reinstate loan", reinstateLoan)
		return err
	}

	s.returns.Add(ctx, 1)
	return nil
}

func (s *service) FindUserByID(ctx context.Context, id membership.UserID) (membership.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.Get(id)
}

func (s *service) FindBookByID(ctx context.Context, id catalog.BookID) (catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books.Get(id)
}

func (s *service) FindAllUsers(ctx context.Context) []membership.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.ListAll()
}

func (s *service) FindAllBooks(ctx context.Context) []catalog.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books.ListAll()
}

func (s *service) FindAvailableBooks(ctx context.Context) []catalog.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books.ListAvailable()
}

// GetBorrowedBooks returns the books userID holds, in the order they were borrowed.
func (s *service) GetBorrowedBooks(ctx context.Context, userID membership.UserID) ([]catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.users.Get(userID); err != nil {
		return nil, err
	}

	ids := s.ledger.LoansOf(userID)
	books := make([]catalog.Book, 0, len(ids))
	for _, id := range ids {
		b, err := s.books.Get(id)
		if err != nil {
			return nil, fmt.Errorf("loan of user %d references missing book: %w", userID, err)
		}
		books = append(books, b)
	}
	return books, nil
}

// GetLoans is GetBorrowedBooks with each loan's due date.
func (s *service) GetLoans(ctx context.Context, userID membership.UserID) ([]catalog.LoanedBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.users.Get(userID); err != nil {
		return nil, err
	}

	loans := s.ledger.Loans(userID)
	books := make([]catalog.LoanedBook, 0, len(loans))
	for _, ln := range loans {
		b, err := s.books.Get(ln.BookID)
		if err != nil {
			return nil, fmt.Errorf("loan of user %d references missing book: %w", userID, err)
		}
		books = append(books, catalog.LoanedBook{Book: b, DueDate: ln.DueDate})
	}
	return books, nil
}

func (s *service) record(ctx context.Context, eventType string, payload interface{}) error {
	if s.journal == nil {
		return nil
	}
	if _, err := s.journal.Append(ctx, eventType, payload); err != nil {
		return fmt.Errorf("journal %s: %w", eventType, err)
	}
	return nil
}

// compensate runs an undo step. A failing undo is logged; the caller still reports the
// error that triggered it.
func (s *service) compensate(ctx context.Context, step string, undo func() error) {
	s.logger.WarnContext(ctx, "compensating failed lending operation", "step", step)
	if err := undo(); err != nil {
		s.logger.ErrorContext(ctx, "compensation failed", "step", step, "error", err)
	}
}

func (s *service) finish(ctx context.Context, span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		return
	}

	reason := rejectionReason(err)
	span.SetAttributes(attribute.String("rejection.reason", reason))
	span.SetStatus(codes.Error, err.Error())
	s.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("reason", reason),
	))

	if reason == "internal" {
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "lending operation failed", "operation", op, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "lending operation rejected", "operation", op, "reason", reason, "error", err)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrBookUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNotBorrowed):
		return "not_borrowed"
	case errors.Is(err, store.ErrBookNotFound):
		return "book_not_found"
	case errors.Is(err, store.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, store.ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}
