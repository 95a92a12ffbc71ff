package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"booklib/internal/auth"
	"booklib/internal/config"
	"booklib/internal/loan"
	"booklib/internal/server"
	"booklib/internal/storage"
	"booklib/internal/storage/pg"
	"booklib/internal/storage/stubs"
)

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger
	store  storage.Store
	server *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting booklib service")

	if err := app.initStore(); err != nil {
		return nil, err
	}

	app.initHTTPServer()

	return app, nil
}

// initStore initializes the storage backend
func (a *App) initStore() error {
	if a.config.UseMockDB {
		a.logger.Info("Using in-memory store")
		a.store = stubs.NewMockStore()
	} else {
		a.logger.Info("Connecting to Postgres")
		store, err := pg.NewPostgresStore(context.Background(), a.config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.store = store
	}

	if err := a.store.Initialize(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	a.logger.Info("Store initialized")

	return nil
}

// initHTTPServer wires the loan engine, reporter, and HTTP routes
func (a *App) initHTTPServer() {
	engine := loan.NewEngine(a.store, a.logger)
	reporter := loan.NewReporter(a.store)
	tokens := auth.NewTokenManager(a.config.JWTSecret, a.config.TokenTTL)

	srv := server.New(a.store, engine, reporter, tokens, a.logger)

	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	errChan := make(chan error, 1)

	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		a.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("Error closing store", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()

	return nil
}
