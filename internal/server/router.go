// Package server wires the lending service to its journal and exposes it over HTTP.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"libraledger/internal/catalog"
	"libraledger/internal/circulation"
	"libraledger/internal/config"
	"libraledger/internal/membership"
	"libraledger/internal/web"
)

// NewRouter mounts the user, book and loan endpoints. A nil limiter disables throttling;
// /healthz is never throttled.
func NewRouter(svc circulation.Service, logger *slog.Logger, limiter *rate.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(web.AccessLog(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		web.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(web.RateLimit(limiter))
		}
		r.Route("/users", membership.NewHandler(svc).Routes)
		r.Route("/books", catalog.NewHandler(svc).Routes)
		circulation.NewHandler(svc).Routes(r)
	})

	return r
}

// NewLimiter returns the token bucket for cfg, or nil when rate limiting is off.
func NewLimiter(cfg config.HTTPConfig) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
}
