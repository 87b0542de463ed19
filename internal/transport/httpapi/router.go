package httpapi

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pennyledger/pennyledger/internal/transport/httpapi/handler"
	"github.com/pennyledger/pennyledger/internal/transport/httpapi/middleware"
	"github.com/pennyledger/pennyledger/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger             *logger.Logger
	AllowedOrigins     []string
	RateLimitRPS       int
	RateLimitBurst     int
	AccountHandler     *handler.AccountHandler
	TransactionHandler *handler.TransactionHandler
	TransferHandler    *handler.TransferHandler
	HealthHandler      *handler.HealthHandler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	// Health check endpoints
	if cfg.HealthHandler != nil {
		r.Get("/health", cfg.HealthHandler.GetHealth)
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AccountHandler != nil {
			r.Post("/accounts", cfg.AccountHandler.CreateAccount)
			r.Get("/accounts", cfg.AccountHandler.ListAccounts)
			r.Get("/accounts/{id}", cfg.AccountHandler.GetAccount)
			r.Put("/accounts/{id}", cfg.AccountHandler.RenameAccount)
			r.Delete("/accounts/{id}", cfg.AccountHandler.DeleteAccount)
		}

		if cfg.TransactionHandler != nil {
			r.Post("/transactions", cfg.TransactionHandler.CreateTransaction)
			r.Get("/transactions", cfg.TransactionHandler.ListTransactions)
			r.Put("/transactions/{id}", cfg.TransactionHandler.UpdateTransaction)
			r.Delete("/transactions/{id}", cfg.TransactionHandler.DeleteTransaction)
		}

		if cfg.TransferHandler != nil {
			r.Post("/transfers", cfg.TransferHandler.CreateTransfer)
			r.Get("/transfers", cfg.TransferHandler.ListTransfers)
			r.Get("/transfers/{id}", cfg.TransferHandler.GetTransfer)
			r.Put("/transfers/{id}", cfg.TransferHandler.UpdateTransfer)
			r.Delete("/transfers/{id}", cfg.TransferHandler.DeleteTransfer)
		}
	})

	return r
}
