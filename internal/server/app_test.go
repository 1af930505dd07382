package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraledger/internal/catalog"
	"libraledger/internal/config"
	"libraledger/internal/membership"
)

func testConfig(driver, dsn string) *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{Port: 8080, LogLevel: "info", ShutdownTimeout: 2 * time.Second},
		Journal:    config.JournalConfig{Driver: driver, DSN: dsn},
		Membership: config.MembershipConfig{Roles: []string{"member", "librarian", "archivist"}},
		Telemetry:  config.TelemetryConfig{ServiceName: "libraledger-test"},
	}
}

func TestAppRestoresFromJournal(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("sqlite3", filepath.Join(t.TempDir(), "ledger.db"))
	cfg.Lending.LoanPeriod = 48 * time.Hour
	logger := slog.New(slog.DiscardHandler)

	app, err := New(ctx, cfg, logger)
	require.NoError(t, err)

	book, err := app.Service.AddBook(ctx, catalog.BookDraft{Title: "Middlemarch", Author: "George Eliot"})
	require.NoError(t, err)
	user, err := app.Service.RegisterUser(ctx, membership.UserDraft{Name: "Dorothea", Email: "d@example.com", Role: "archivist"})
	require.NoError(t, err)
	require.NoError(t, app.Service.BorrowBook(ctx, user.ID, book.ID))
	require.NoError(t, app.Close())

	restarted, err := New(ctx, cfg, logger)
	require.NoError(t, err)
	defer restarted.Close()

	held, err := restarted.Service.GetBorrowedBooks(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, book.ID, held[0].ID)
	assert.False(t, held[0].Available)

	loans, err := restarted.Service.GetLoans(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), loans[0].DueDate, time.Minute)

	restoredUser, err := restarted.Service.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, membership.Role("ARCHIVIST"), restoredUser.Role)
}

func TestAppRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), testConfig("mongo", ""), slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestServeShutsDownWithContext(t *testing.T) {
	app, err := New(context.Background(), testConfig("memory", ""), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer app.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
