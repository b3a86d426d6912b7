// Package storage opens the repositories selected by DATABASE_DRIVER together with
// a migration runner over the same database.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/expensetracker/internal/app/migrate"
	"github.com/splax/expensetracker/internal/repository"
	"github.com/splax/expensetracker/internal/repository/postgres"
	"github.com/splax/expensetracker/internal/repository/sqlite"
	"github.com/splax/expensetracker/pkg/config"
)

// Store is the full persistence surface used by the API.
type Store interface {
	repository.UserRepository
	repository.ExpenseRepository
}

// Handle bundles an open store with its health check and migrations.
type Handle struct {
	Store    Store
	Migrator *migrate.Runner
	ping     func(context.Context) error
	closers  []func()
}

// Ping checks the database connection.
func (h *Handle) Ping(ctx context.Context) error {
	return h.ping(ctx)
}

// Close releases every connection in reverse opening order.
func (h *Handle) Close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		h.closers[i]()
	}
}

// Open connects to the configured database. Migrations are not applied.
func Open(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (*Handle, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		runner, err := migrate.Open(migrate.Postgres, cfg.DatabaseURL, log, migrate.WithDir(cfg.MigrationsDir))
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &Handle{
			Store:    postgres.New(pool),
			Migrator: runner,
			ping:     pool.Ping,
			closers:  []func(){pool.Close, runner.Close},
		}, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		runner, err := migrate.New(store.DB(), migrate.SQLite, log, migrate.WithDir(cfg.MigrationsDir))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		return &Handle{
			Store:    store,
			Migrator: runner,
			ping:     store.Ping,
			closers:  []func(){func() { _ = store.Close() }},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

// OpenMigrator returns only a migration runner for the configured database.
func OpenMigrator(cfg config.APIConfig, log *slog.Logger) (*migrate.Runner, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return migrate.Open(migrate.Postgres, cfg.DatabaseURL, log, migrate.WithDir(cfg.MigrationsDir))
	case config.DriverSQLite:
		return migrate.Open(migrate.SQLite, cfg.SQLitePath, log, migrate.WithDir(cfg.MigrationsDir))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}
