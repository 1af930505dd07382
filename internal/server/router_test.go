package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"libraledger/internal/catalog"
	"libraledger/internal/circulation"
	"libraledger/internal/config"
	"libraledger/internal/membership"
	"libraledger/internal/sequence"
	"libraledger/internal/web"
)

func newTestRouter(t *testing.T, limiter *rate.Limiter) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	svc := circulation.NewService(
		catalog.NewStore(sequence.New()),
		membership.NewStore(sequence.New(), nil),
		circulation.NewLedger(),
		circulation.WithLogger(logger),
	)
	return NewRouter(svc, logger, limiter)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestRouter(t, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLendingOverHTTP(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/books", `{"title":"Dune","author":"Frank Herbert","isbn":"9780441013593"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	book := decode[catalog.Book](t, rec)
	assert.Equal(t, catalog.BookID(1), book.ID)
	assert.True(t, book.Available)

	rec = do(t, h, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com","password":"s3cret","role":"member"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "s3cret")
	assert.NotContains(t, rec.Body.String(), "password")
	user := decode[membership.User](t, rec)
	assert.Equal(t, membership.RoleMember, user.Role)

	rec = do(t, h, http.MethodPost, "/loans", `{"user_id":1,"book_id":1,"due_date":"2099-12-31T00:00:00Z"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	due := time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

	rec = do(t, h, http.MethodGet, "/books?available=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]catalog.Book](t, rec))

	rec = do(t, h, http.MethodGet, "/books", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]catalog.Book](t, rec), 1)

	rec = do(t, h, http.MethodGet, "/users/1/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[membership.Profile](t, rec)
	assert.Equal(t, user.ID, profile.User.ID)
	require.Len(t, profile.BorrowedBooks, 1)
	assert.False(t, profile.BorrowedBooks[0].Available)
	assert.Equal(t, due, profile.BorrowedBooks[0].DueDate)
	assert.NotContains(t, rec.Body.String(), "s3cret")

	rec = do(t, h, http.MethodGet, "/users/1/books", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`[{"id":1,"title":"Dune","author":"Frank Herbert","isbn":"9780441013593","available":false,"due_date":"2099-12-31T00:00:00Z"}]`,
		rec.Body.String())

	rec = do(t, h, http.MethodPost, "/returns", `{"user_id":1,"book_id":1}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/users/1/books", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestErrorStatuses(t *testing.T) {
	h := newTestRouter(t, nil)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/books", `{"title":"Emma"}`).Code)
	require.Equal(t, http.StatusCreated,
		do(t, h, http.MethodPost, "/users", `{"name":"A","email":"a@example.com","role":"MEMBER"}`).Code)
	require.Equal(t, http.StatusCreated,
		do(t, h, http.MethodPost, "/users", `{"name":"B","email":"b@example.com","role":"MEMBER"}`).Code)
	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/loans", `{"user_id":1,"book_id":1}`).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown user", http.MethodGet, "/users/42", "", http.StatusNotFound},
		{"unknown book", http.MethodGet, "/books/42", "", http.StatusNotFound},
		{"borrowed books of unknown user", http.MethodGet, "/users/42/books", "", http.StatusNotFound},
		{"non numeric id", http.MethodGet, "/books/abc", "", http.StatusBadRequest},
		{"zero id", http.MethodGet, "/users/0", "", http.StatusBadRequest},
		{"missing name", http.MethodPost, "/users", `{"email":"x@example.com","role":"MEMBER"}`, http.StatusBadRequest},
		{"unknown role", http.MethodPost, "/users", `{"name":"X","email":"x@example.com","role":"ADMIN"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/books", `{"title":`, http.StatusBadRequest},
		{"borrow held book", http.MethodPost, "/loans", `{"user_id":2,"book_id":1}`, http.StatusConflict},
		{"return book held by another", http.MethodPost, "/returns", `{"user_id":2,"book_id":1}`, http.StatusConflict},
		{"borrow unknown book", http.MethodPost, "/loans", `{"user_id":1,"book_id":9}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode[web.ErrorResponse](t, rec).Error)
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestRouter(t, rate.NewLimiter(0, 1))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/books", "").Code)

	rec := do(t, h, http.MethodGet, "/books", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", decode[web.ErrorResponse](t, rec).Error)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(config.HTTPConfig{}))

	l := NewLimiter(config.HTTPConfig{RateLimit: 5})
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
	assert.Equal(t, rate.Limit(5), l.Limit())
}
