package circulation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"libraledger/internal/catalog"
	"libraledger/internal/journal"
	"libraledger/internal/membership"
)

// Restore rebuilds books, users and loans from r. It expects empty stores and is meant to
// run once at startup; on error the stores are left partially populated.
func (s *service) Restore(ctx context.Context, r journal.Reader) error {
	ctx, span := s.tracer.Start(ctx, "lending.restore")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := r.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReplay, err)
	}

	for _, e := range events {
		if err := s.apply(e); err != nil {
			span.RecordError(err)
			return fmt.Errorf("%w: event %d (%s): %w", ErrReplay, e.Seq, e.Type, err)
		}
	}

	span.SetAttributes(
		attribute.Int("events.replayed", len(events)),
		attribute.Int("loans.active", s.ledger.OnLoan()),
	)
	s.logger.InfoContext(ctx, "lending state restored",
		"events", len(events),
		"books", len(s.books.ListAll()),
		"users", len(s.users.ListAll()),
		"loans", s.ledger.OnLoan(),
	)
	return nil
}

func (s *service) apply(e journal.Event) error {
	switch e.Type {
	case catalog.BookAddedEventType:
		var p catalog.BookAddedEvent
		if err := e.Decode(&p); err != nil {
			return err
		}
		return s.books.Restore(catalog.Book{
			ID:        p.ID,
			Title:     p.Title,
			Author:    p.Author,
			ISBN:      p.ISBN,
			Available: true,
		})

	case membership.UserRegisteredEventType:
		var p membership.UserRegisteredEvent
		if err := e.Decode(&p); err != nil {
			return err
		}
		return s.users.Restore(membership.User{
			ID:       p.ID,
			Name:     p.Name,
			Email:    p.Email,
			Password: p.Password,
			Role:     p.Role,
			Active:   true,
		})

	case BookBorrowedEventType:
		var p BookBorrowedEvent
		if err := e.Decode(&p); err != nil {
			return err
		}
		if _, err := s.users.Get(p.UserID); err != nil {
			return err
		}
		book, err := s.books.Get(p.BookID)
		if err != nil {
			return err
		}
		if !book.Available {
			return fmt.Errorf("%w: book %d", ErrBookUnavailable, p.BookID)
		}
		due := p.DueDate
		if due.IsZero() {
			due = e.RecordedAt.Add(s.loanPeriod)
		}
		if err := s.ledger.RecordBorrow(p.UserID, p.BookID, due.UTC()); err != nil {
			return err
		}
		return s.books.SetAvailability(p.BookID, false)

	case BookReturnedEventType:
		var p BookReturnedEvent
		if err := e.Decode(&p); err != nil {
			return err
		}
		if err := s.ledger.RecordReturn(p.UserID, p.BookID); err != nil {
			return err
		}
		return s.books.SetAvailability(p.BookID, true)

	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
}
