// internal/catalog/handler.go
package catalog

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"libraledger/internal/web"
)

// BookService is the part of the lending service the book endpoints need.
type BookService interface {
	AddBook(ctx context.Context, draft BookDraft) (Book, error)
	FindBookByID(ctx context.Context, id BookID) (Book, error)
	FindAllBooks(ctx context.Context) []Book
	FindAvailableBooks(ctx context.Context) []Book
}

type Handler struct {
	service BookService
}

func NewHandler(service BookService) *Handler {
	return &Handler{service: service}
}

// Routes mounts the book endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.handleAddBook)
	r.Get("/", h.handleListBooks)
	r.Get("/{bookID}", h.handleGetBook)
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req BookDraft
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, r, http.StatusBadRequest, err)
		return
	}

	book, err := h.service.AddBook(r.Context(), req)
	if err != nil {
		web.Error(w, r, web.StatusFor(err), err)
		return
	}

	web.JSON(w, http.StatusCreated, book)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	var books []Book
	if r.URL.Query().Get("available") == "true" {
		books = h.service.FindAvailableBooks(r.Context())
	} else {
		books = h.service.FindAllBooks(r.Context())
	}

	web.JSON(w, http.StatusOK, books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "bookID")
	if err != nil {
		web.Error(w, r, http.StatusBadRequest, err)
		return
	}

	book, err := h.service.FindBookByID(r.Context(), BookID(id))
	if err != nil {
		web.Error(w, r, web.StatusFor(err), err)
		return
	}

	web.JSON(w, http.StatusOK, book)
}
