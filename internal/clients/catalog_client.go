package clients

import (
	"context"
	"fmt"
	"net/http"

	"libraledger/internal/catalog"
)

type CatalogClient struct {
	base
}

func NewCatalogClient(baseURL string, httpClient *http.Client) *CatalogClient {
	return &CatalogClient{base: newBase(baseURL, httpClient)}
}

func (c *CatalogClient) AddBook(ctx context.Context, draft catalog.BookDraft) (*catalog.Book, error) {
	var book catalog.Book
	if err := c.do(ctx, http.MethodPost, "/books", draft, &book, http.StatusCreated); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *CatalogClient) GetBook(ctx context.Context, id catalog.BookID) (*catalog.Book, error) {
	var book catalog.Book
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/books/%d", id), nil, &book, http.StatusOK); err != nil {
		return nil, err
	}
	return &book, nil
}

// ListBooks returns every book, or only those on the shelf when availableOnly is set.
func (c *CatalogClient) ListBooks(ctx context.Context, availableOnly bool) ([]catalog.Book, error) {
	path := "/books"
	if availableOnly {
		path += "?available=true"
	}
	var books []catalog.Book
	if err := c.do(ctx, http.MethodGet, path, nil, &books, http.StatusOK); err != nil {
		return nil, err
	}
	return books, nil
}
