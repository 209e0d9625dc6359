package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/adapter/http/handler"
	"github.com/iho/ledgercore/internal/adapter/http/middleware"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler  *handler.AccountHandler
	TransferHandler *handler.TransferHandler
	EntryHandler    *handler.EntryHandler
	LedgerHandler   *handler.LedgerHandler
	HealthHandler   *handler.HealthHandler
	Metrics         *metrics.Metrics
	MetricsHandler  http.Handler
	Logger          zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Patch("/{id}/status", cfg.AccountHandler.SetStatus)
			r.Get("/{id}/balance", cfg.AccountHandler.Balance)
			r.Get("/{id}/entries", cfg.EntryHandler.ListByAccount)
			r.Get("/{id}/verify", cfg.LedgerHandler.VerifyAccount)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", cfg.TransferHandler.Create)
			r.Get("/{id}", cfg.TransferHandler.Get)
			r.Get("/{id}/entries", cfg.EntryHandler.ListByTransfer)
			r.Get("/{id}/verify", cfg.LedgerHandler.VerifyTransfer)
		})

		r.Get("/ledger/verify", cfg.LedgerHandler.VerifyAll)
	})

	return r
}
