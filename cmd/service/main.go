// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-sync-engine/internal/api"
	"github-sync-engine/internal/config"
	"github-sync-engine/internal/database"
	"github-sync-engine/internal/githubapp"
	"github-sync-engine/internal/importer"
	"github-sync-engine/internal/ledger"
	"github-sync-engine/internal/scheduler"
	"github-sync-engine/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	queries := database.New(dbpool)
	store := database.NewStore(dbpool)

	appAuth, err := githubapp.NewAppAuth(cfg.GithubAppID, []byte(cfg.GithubAppPrivateKey), cfg.GithubAPIBaseURL, cfg.RequestTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize app auth: %w", err)
	}
	tokens := githubapp.NewTokenCache(appAuth, logger)
	clients := githubapp.NewClients(tokens, cfg.GithubAPIBaseURL, cfg.RequestTimeout, logger)

	imp := importer.New(logger)
	led := ledger.New(logger)

	processor := webhook.NewProcessor(queries, store, clients, imp, led, logger)
	webhookRouter := webhook.NewRouter(cfg.GithubWebhookSecret, processor, logger)

	sched := scheduler.New(queries, store, clients, imp, led, cfg.GithubToken, cfg.SyncInterval, cfg.StalenessWindow, logger)

	// 6. Start the scheduler in a separate goroutine
	go sched.Start(ctx)

	// 7. Start the HTTP server
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(queries, sched, webhookRouter, logger),
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 8. Wait for shutdown signal or server failure
	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received. Exiting.")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
