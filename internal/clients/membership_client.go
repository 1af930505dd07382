package clients

import (
	"context"
	"fmt"
	"net/http"

	"libraledger/internal/catalog"
	"libraledger/internal/membership"
)

type MembershipClient struct {
	base
}

func NewMembershipClient(baseURL string, httpClient *http.Client) *MembershipClient {
	return &MembershipClient{base: newBase(baseURL, httpClient)}
}

func (c *MembershipClient) RegisterUser(ctx context.Context, draft membership.UserDraft) (*membership.User, error) {
	var user membership.User
	if err := c.do(ctx, http.MethodPost, "/users", draft, &user, http.StatusCreated); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *MembershipClient) GetUser(ctx context.Context, id membership.UserID) (*membership.User, error) {
	var user membership.User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *MembershipClient) ListUsers(ctx context.Context) ([]membership.User, error) {
	var users []membership.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users, http.StatusOK); err != nil {
		return nil, err
	}
	return users, nil
}

// BorrowedBooks lists the books id holds, each with its due date.
func (c *MembershipClient) BorrowedBooks(ctx context.Context, id membership.UserID) ([]catalog.LoanedBook, error) {
	var books []catalog.LoanedBook
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/books", id), nil, &books, http.StatusOK); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *MembershipClient) Profile(ctx context.Context, id membership.UserID) (*membership.Profile, error) {
	var profile membership.Profile
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/profile", id), nil, &profile, http.StatusOK); err != nil {
		return nil, err
	}
	return &profile, nil
}
