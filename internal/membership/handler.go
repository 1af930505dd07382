// internal/membership/handler.go
package membership

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"libraledger/internal/catalog"
	"libraledger/internal/web"
)

// UserService is the part of the lending service the user endpoints need.
type UserService interface {
	RegisterUser(ctx context.Context, draft UserDraft) (User, error)
	FindUserByID(ctx context.Context, id UserID) (User, error)
	FindAllUsers(ctx context.Context) []User
	GetLoans(ctx context.Context, id UserID) ([]catalog.LoanedBook, error)
}

// Profile is a user together with the books they currently hold and when each is due.
type Profile struct {
	User          User                 `json:"user"`
	BorrowedBooks []catalog.LoanedBook `json:"borrowed_books"`
}

type Handler struct {
	service UserService
}

func NewHandler(service UserService) *Handler {
	return &Handler{service: service}
}

// Routes mounts the user endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.handleRegisterUser)
	r.Get("/", h.handleListUsers)
	r.Get("/{userID}", h.handleGetUser)
	r.Get("/{userID}/books", h.handleBorrowedBooks)
	r.Get("/{userID}/profile", h.handleProfile)
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req UserDraft
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, r, http.StatusBadRequest, err)
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req)
	if err != nil {
		web.Error(w, r, web.StatusFor(err), err)
		return
	}

	web.JSON(w, http.StatusCreated, user)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, http.StatusOK, h.service.FindAllUsers(r.Context()))
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "userID")
	if err != nil {
		web.Error(w, r, http.StatusBadRequest, err)
		return
	}

	user, err := h.service.FindUserByID(r.Context(), UserID(id))
	if err != nil {
		web.Error(w, r, web.StatusFor(err), err)
		return
	}

	web.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleBorrowedBooks(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "userID")
	if err != nil {
		web.Error(w, r, http.StatusBadRequest, err)
		return
	}

	books, err := h.service.GetLoans(r.Context(), UserID(id))
	if err != nil {
		web.Error(w, r, web.StatusFor(err), err)
		return
	}

	web.JSON(w, http.StatusOK, books)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "userID")
	if err != nil {
		web.Error(w, r, http.StatusBadRequest, err)
		return
	}

	user, err := h.service.FindUserByID(r.Context(), UserID(id))
	if err != nil {
		web.Error(w, r, web.StatusFor(err), err)
		return
	}
	books, err := h.service.GetLoans(r.Context(), user.ID)
	if err != nil {
		web.Error(w, r, web.StatusFor(err), err)
		return
	}

	web.JSON(w, http.StatusOK, Profile{User: user, BorrowedBooks: books})
}
