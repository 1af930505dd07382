package chaos

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"libraledger/internal/catalog"
	"libraledger/internal/clients"
	"libraledger/internal/membership"
)

// Target is the lending server the experiments run against.
type Target struct {
	Books *clients.CatalogClient
	Users *clients.MembershipClient
	Loans *clients.CirculationClient
}

func NewTarget(baseURL string, httpClient *http.Client) *Target {
	return &Target{
		Books: clients.NewCatalogClient(baseURL, httpClient),
		Users: clients.NewMembershipClient(baseURL, httpClient),
		Loans: clients.NewCirculationClient(baseURL, httpClient),
	}
}

// RegisterExperiments registers the predefined experiments against t.
func (e *Engine) RegisterExperiments(t *Target, duration time.Duration) {
	e.RegisterExperiment(ConcurrentBorrowRace(t, 100, duration))
	e.RegisterExperiment(BorrowReturnChurn(t, 8, 3, 25, duration))
}

// ConcurrentBorrowRace fires concurrency simultaneous borrows of one fresh book.
func ConcurrentBorrowRace(t *Target, concurrency int, duration time.Duration) Experiment {
	var (
		winners atomic.Int64
		book    catalog.BookID
		winner  atomic.Int64
	)

	metrics := append(t.invariantMetrics(), Metric{
		Name:  "winning_borrows",
		Read:  func(context.Context) (float64, error) { return float64(winners.Load()), nil },
		Limit: AtMost(1),
	})

	return Experiment{
		Name:        "concurrent-borrow-race",
		Hypothesis:  "Exactly one of many simultaneous borrows of the same book succeeds",
		SteadyState: metrics,
		Inject: []Action{
			{
				Name: "concurrent-borrows",
				Run: func(ctx context.Context) error {
					b, err := t.Books.AddBook(ctx, catalog.BookDraft{Title: "Race Condition", Author: "Chaos", ISBN: "0000000000"})
					if err != nil {
						return fmt.Errorf("add book: %w", err)
					}
					book = b.ID

					users := make([]membership.UserID, 0, concurrency)
					for i := 0; i < concurrency; i++ {
						u, err := t.Users.RegisterUser(ctx, membership.UserDraft{
							Name:  fmt.Sprintf("racer-%d", i),
							Email: fmt.Sprintf("racer-%d@chaos.invalid", i),
							Role:  string(membership.RoleMember),
						})
						if err != nil {
							return fmt.Errorf("register user: %w", err)
						}
						users = append(users, u.ID)
					}

					var (
						wg         sync.WaitGroup
						unexpected atomic.Int64
					)
					start := make(chan struct{})
					for _, id := range users {
						wg.Add(1)
						go func(id membership.UserID) {
							defer wg.Done()
							<-start
							err := t.Loans.Borrow(ctx, id, book)
							switch {
							case err == nil:
								winners.Add(1)
								winner.Store(int64(id))
							case !clients.HasStatus(err, http.StatusConflict):
								unexpected.Add(1)
							}
						}(id)
					}
					close(start)
					wg.Wait()

					if n := unexpected.Load(); n > 0 {
						return fmt.Errorf("%d borrows failed with something other than a conflict", n)
					}
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Name: "return-winning-loan",
				Run: func(ctx context.Context) error {
					if winners.Load() != 1 {
						return nil
					}
					return t.Loans.Return(ctx, membership.UserID(winner.Load()), book)
				},
			},
		},
		Checks: []Assertion{
			{
				Metric:  "winning_borrows",
				Holds:   func(v float64) bool { return v == 1 },
				Message: "Exactly one borrow should win the race",
			},
			{
				Metric:  "double_loans",
				Holds:   func(v float64) bool { return v == 0 },
				Message: "No book may be held by two users",
			},
			{
				Metric:  "availability_mismatches",
				Holds:   func(v float64) bool { return v == 0 },
				Message: "A book is unavailable exactly when someone holds it",
			},
		},
		Duration: duration,
	}
}

// BorrowReturnChurn has workers members repeatedly borrow and return a small shared pool
// of books, so most borrows collide.
func BorrowReturnChurn(t *Target, workers, pool, rounds int, duration time.Duration) Experiment {
	return Experiment{
		Name:        "borrow-return-churn",
		Hypothesis:  "Contended borrow/return traffic never breaks loan consistency",
		SteadyState: t.invariantMetrics(),
		Inject: []Action{
			{
				Name: "contended-borrow-return",
				Run: func(ctx context.Context) error {
					books := make([]catalog.BookID, 0, pool)
					for i := 0; i < pool; i++ {
						b, err := t.Books.AddBook(ctx, catalog.BookDraft{Title: fmt.Sprintf("Churn %d", i), Author: "Chaos"})
						if err != nil {
							return fmt.Errorf("add book: %w", err)
						}
						books = append(books, b.ID)
					}

					var (
						wg   sync.WaitGroup
						mu   sync.Mutex
						errs []error
					)
					for w := 0; w < workers; w++ {
						u, err := t.Users.RegisterUser(ctx, membership.UserDraft{
							Name:  fmt.Sprintf("churner-%d", w),
							Email: fmt.Sprintf("churner-%d@chaos.invalid", w),
							Role:  string(membership.RoleMember),
						})
						if err != nil {
							return fmt.Errorf("register user: %w", err)
						}

						wg.Add(1)
						go func(user membership.UserID) {
							defer wg.Done()
							for r := 0; r < rounds; r++ {
								book := books[rand.IntN(len(books))]
								err := t.Loans.Borrow(ctx, user, book)
								if clients.HasStatus(err, http.StatusConflict) {
									continue
								}
								if err == nil {
									err = t.Loans.Return(ctx, user, book)
								}
								if err != nil {
									mu.Lock()
									errs = append(errs, err)
									mu.Unlock()
									return
								}
							}
						}(u.ID)
					}
					wg.Wait()

					return errors.Join(errs...)
				},
			},
		},
		Checks: []Assertion{
			{
				Metric:  "double_loans",
				Holds:   func(v float64) bool { return v == 0 },
				Message: "No book may be held by two users",
			},
			{
				Metric:  "availability_mismatches",
				Holds:   func(v float64) bool { return v == 0 },
				Message: "A book is unavailable exactly when someone holds it",
			},
		},
		Duration: duration,
	}
}

// invariantMetrics reads the whole lending state through the API and counts books held
// by more than one user and books whose availability disagrees with the loans.
func (t *Target) invariantMetrics() []Metric {
	return []Metric{
		{
			Name: "double_loans",
			Read: func(ctx context.Context) (float64, error) {
				holders, err := t.holders(ctx)
				if err != nil {
					return 0, err
				}
				var n int
				for _, users := range holders {
					if users > 1 {
						n++
					}
				}
				return float64(n), nil
			},
			Limit: Exactly(0),
		},
		{
			Name: "availability_mismatches",
			Read: func(ctx context.Context) (float64, error) {
				holders, err := t.holders(ctx)
				if err != nil {
					return 0, err
				}
				books, err := t.Books.ListBooks(ctx, false)
				if err != nil {
					return 0, err
				}
				var n int
				for _, b := range books {
					if b.Available == (holders[b.ID] > 0) {
						n++
					}
				}
				return float64(n), nil
			},
			Limit: Exactly(0),
		},
	}
}

// holders counts, for every book on loan, how many users report holding it.
func (t *Target) holders(ctx context.Context) (map[catalog.BookID]int, error) {
	users, err := t.Users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[catalog.BookID]int)
	for _, u := range users {
		books, err := t.Users.BorrowedBooks(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		for _, b := range books {
			counts[b.ID]++
		}
	}
	return counts, nil
}
