package clients

import (
	"context"
	"net/http"
	"time"

	"libraledger/internal/catalog"
	"libraledger/internal/circulation"
	"libraledger/internal/membership"
)

type CirculationClient struct {
	base
}

func NewCirculationClient(baseURL string, httpClient *http.Client) *CirculationClient {
	return &CirculationClient{base: newBase(baseURL, httpClient)}
}

// Borrow lends bookID to userID. A 409 StatusError means the book is already on loan.
func (c *CirculationClient) Borrow(ctx context.Context, userID membership.UserID, bookID catalog.BookID) error {
	return c.do(ctx, http.MethodPost, "/loans", circulation.LoanRequest{UserID: userID, BookID: bookID}, nil, http.StatusNoContent)
}

// BorrowUntil is Borrow with an explicit due date.
func (c *CirculationClient) BorrowUntil(ctx context.Context, userID membership.UserID, bookID catalog.BookID, due time.Time) error {
	req := circulation.LoanRequest{UserID: userID, BookID: bookID, DueDate: due}
	return c.do(ctx, http.MethodPost, "/loans", req, nil, http.StatusNoContent)
}

// Return gives bookID back. A 409 StatusError means userID does not hold it.
func (c *CirculationClient) Return(ctx context.Context, userID membership.UserID, bookID catalog.BookID) error {
	return c.do(ctx, http.MethodPost, "/returns", circulation.LoanRequest{UserID: userID, BookID: bookID}, nil, http.StatusNoContent)
}
