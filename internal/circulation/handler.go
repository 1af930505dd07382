// internal/circulation/handler.go
package circulation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"libraledger/internal/catalog"
	"libraledger/internal/membership"
	"libraledger/internal/web"
)

// LoanService is the part of the lending service the loan endpoints need.
type LoanService interface {
	BorrowBookUntil(ctx context.Context, userID membership.UserID, bookID catalog.BookID, due time.Time) error
	ReturnBook(ctx context.Context, userID membership.UserID, bookID catalog.BookID) error
}

type Handler struct {
	service LoanService
}

func NewHandler(service LoanService) *Handler {
	return &Handler{service: service}
}

// Routes mounts POST /loans and POST /returns on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/loans", h.handleBorrow)
	r.Post("/returns", h.handleReturn)
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	h.handleLoan(w, r, func(ctx context.Context, req LoanRequest) error {
		return h.service.BorrowBookUntil(ctx, req.UserID, req.BookID, req.DueDate)
	})
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	h.handleLoan(w, r, func(ctx context.Context, req LoanRequest) error {
		return h.service.ReturnBook(ctx, req.UserID, req.BookID)
	})
}

func (h *Handler) handleLoan(w http.ResponseWriter, r *http.Request, op func(context.Context, LoanRequest) error) {
	var req LoanRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, r, http.StatusBadRequest, err)
		return
	}

	if err := op(r.Context(), req); err != nil {
		web.Error(w, r, statusFor(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	if errors.Is(err, ErrBookUnavailable) || errors.Is(err, ErrNotBorrowed) {
		return http.StatusConflict
	}
	return web.StatusFor(err)
}
