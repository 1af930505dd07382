package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"libraledger/internal/catalog"
	"libraledger/internal/circulation"
	"libraledger/internal/config"
	"libraledger/internal/journal"
	"libraledger/internal/membership"
	"libraledger/internal/sequence"
)

// App is a lending service restored from its journal and ready to serve.
type App struct {
	Service circulation.Service

	cfg     *config.Config
	logger  *slog.Logger
	journal journal.Journal
}

// New opens the configured journal, replays it into fresh stores and returns the app.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	j, err := journal.Open(ctx, cfg.Journal.Driver, cfg.Journal.DSN)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	roles := make([]membership.Role, 0, len(cfg.Membership.Roles))
	for _, r := range cfg.Membership.Roles {
		roles = append(roles, membership.ParseRole(r))
	}

	svc := circulation.NewService(
		catalog.NewStore(sequence.New()),
		membership.NewStore(sequence.New(), roles),
		circulation.NewLedger(),
		circulation.WithJournal(j),
		circulation.WithLoanPeriod(cfg.Lending.LoanPeriod),
		circulation.WithLogger(logger),
	)
	if err := svc.Restore(ctx, j); err != nil {
		_ = j.Close()
		return nil, err
	}

	return &App{
		Service: svc,
		cfg:     cfg,
		logger:  logger,
		journal: j,
	}, nil
}

// Handler returns the HTTP API for the app.
func (a *App) Handler() http.Handler {
	return NewRouter(a.Service, a.logger, NewLimiter(a.cfg.HTTP))
}

// Run listens on the configured port and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then drains in-flight requests for at most the
// configured shutdown timeout.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting lending server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down lending server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the journal.
func (a *App) Close() error {
	return a.journal.Close()
}
