package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pennyledger/pennyledger/internal/account"
	"github.com/pennyledger/pennyledger/internal/ledger"
	"github.com/pennyledger/pennyledger/internal/store/memory"
	"github.com/pennyledger/pennyledger/internal/store/postgres"
	"github.com/pennyledger/pennyledger/internal/transport/httpapi"
	"github.com/pennyledger/pennyledger/internal/transport/httpapi/handler"
	"github.com/pennyledger/pennyledger/pkg/config"
	"github.com/pennyledger/pennyledger/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting PennyLedger API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Pick the store: Postgres when configured, otherwise in-memory
	var (
		store  ledger.Store
		pinger handler.Pinger
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.NewPool(ctx, postgres.PoolConfig{URL: cfg.DatabaseURL})
		if err != nil {
			log.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = postgres.NewStore(db.Pool)
		pinger = db
		log.Info("Database connection established")
	} else {
		store = memory.New()
		log.Warn("DATABASE_URL not configured, using in-memory store")
	}

	// Initialize services
	engine := ledger.NewEngine(store, log)
	accountSvc := account.NewService(store, log)

	// Initialize HTTP handlers
	accountHandler := handler.NewAccountHandler(accountSvc)
	transactionHandler := handler.NewTransactionHandler(engine)
	transferHandler := handler.NewTransferHandler(engine)
	healthHandler := handler.NewHealthHandler(pinger)

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:             log,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		AccountHandler:     accountHandler,
		TransactionHandler: transactionHandler,
		TransferHandler:    transferHandler,
		HealthHandler:      healthHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
