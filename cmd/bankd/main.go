package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	postgresadapter "github.com/rupeewave/bankcore/internal/adapter/driven/postgres"
	sqliteadapter "github.com/rupeewave/bankcore/internal/adapter/driven/sqlite"
	httphandler "github.com/rupeewave/bankcore/internal/adapter/driving/http"
	"github.com/rupeewave/bankcore/internal/application"
	"github.com/rupeewave/bankcore/internal/config"
	"github.com/rupeewave/bankcore/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_backend", cfg.DBBackend,
		"token_ttl", cfg.TokenTTL,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the configured storage backend and run migrations.
	accountStore, transferStore, auditSink, closeDB, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeDB(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database ready", "backend", cfg.DBBackend)

	// 4. Wire application services.
	logger := slog.Default()
	authSvc := application.NewAuthService(accountStore, auditSink, logger)
	accountSvc := application.NewAccountService(accountStore, transferStore, authSvc, auditSink, logger)
	ledgerSvc := application.NewLedgerService(accountStore, transferStore, authSvc, auditSink, logger)

	// 5. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(authSvc, accountSvc, ledgerSvc, []byte(cfg.JWTSecret), cfg.TokenTTL, logger)
	handler := httphandler.NewServeMux(apiHandler, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 6. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 7. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// openStores opens the backend named in cfg, runs its migrations, and
// returns the wired driven adapters plus a close function.
func openStores(cfg *config.Config) (driven.AccountStore, driven.TransferStore, driven.AuditSink, func() error, error) {
	switch cfg.DBBackend {
	case config.BackendPostgres:
		db, err := postgresadapter.NewDB(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if err := postgresadapter.RunMigrations(db.Pool); err != nil {
			closeQuietly(db)
			return nil, nil, nil, nil, err
		}
		return postgresadapter.NewAccountRepo(db),
			postgresadapter.NewTransferRepo(db),
			postgresadapter.NewAuditRepo(db),
			db.Close, nil
	default:
		db, err := sqliteadapter.NewDB(cfg.DBPath)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			closeQuietly(db)
			return nil, nil, nil, nil, err
		}
		return sqliteadapter.NewAccountRepo(db),
			sqliteadapter.NewTransferRepo(db),
			sqliteadapter.NewAuditRepo(db),
			db.Close, nil
	}
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
