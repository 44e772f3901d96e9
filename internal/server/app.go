// Package server wires the core together: configuration, logging, the
// connection pool, migrations, and the services. It exposes no transport;
// callers embed the App and invoke the services directly.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/glyphlab/moji/internal/dbx"
	"github.com/glyphlab/moji/internal/logging"
	"github.com/glyphlab/moji/internal/server/config"
	"github.com/glyphlab/moji/internal/server/repositories/repomanager"
	"github.com/glyphlab/moji/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	Credentials *services.CredentialService
	Sessions    *services.SessionService
	Audit       *services.AuditService
	Registry    *services.RegistryService
}

// NewApp opens the connection pool, applies migrations, and constructs the
// services. The pool is the only process-wide resource; Close releases it.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, cfg.LogLevel)

	db, err := dbx.Open(ctx, cfg.DatabaseDSN, cfg.MaxDBConns, cfg.StorageTimeout)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	audit := services.NewAuditService(db, repos, logger, cfg)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		Credentials: services.NewCredentialService(db, repos, audit, logger, cfg),
		Sessions:    services.NewSessionService(db, repos, audit, logger, cfg),
		Audit:       audit,
		Registry:    services.NewRegistryService(db, repos, audit, nil, logger, cfg),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until the context is cancelled or a termination signal arrives,
// then releases the pool.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")
	app.initSignalHandler(cancelFunc)

	<-ctx.Done()

	app.logger.Info(ctx, "shutting down")
	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "close error", "error", err)
	}
}

// Close releases the connection pool.
func (app *App) Close() error {
	return app.db.Close()
}
