package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/splax/expensetracker/db/migrations"
)

// Dialect names a supported migration dialect. Its value is also the
// subdirectory of the embedded migrations.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) goose() (goose.Dialect, error) {
	switch d {
	case Postgres:
		return goose.DialectPostgres, nil
	case SQLite:
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", d)
	}
}

func (d Dialect) driver() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// Option customises a Runner.
type Option func(*Runner) error

// WithDir reads migrations from an on-disk directory instead of the embedded set.
func WithDir(dir string) Option {
	return func(r *Runner) error {
		if dir == "" {
			return nil
		}
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("locate migrations dir: %w", err)
		}
		r.fsys = os.DirFS(dir)
		r.source = dir
		return nil
	}
}

// Runner wraps database migration capabilities.
type Runner struct {
	db      *sql.DB
	dialect Dialect
	fsys    fs.FS
	source  string
	owned   bool
	log     *slog.Logger
}

// New returns a migration runner backed by goose over an existing connection.
// The caller keeps ownership of db.
func New(db *sql.DB, dialect Dialect, log *slog.Logger, opts ...Option) (*Runner, error) {
	if db == nil {
		return nil, errors.New("nil database provided")
	}
	if _, err := dialect.goose(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	embedded, err := fs.Sub(migrations.FS, string(dialect))
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	r := &Runner{db: db, dialect: dialect, fsys: embedded, source: "embedded", log: log}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Open connects to dsn with the dialect's database/sql driver and returns a Runner
// that closes the connection on Close.
func Open(dialect Dialect, dsn string, log *slog.Logger, opts ...Option) (*Runner, error) {
	if dsn == "" {
		return nil, errors.New("empty database dsn")
	}
	db, err := sql.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open sql connection: %w", err)
	}
	r, err := New(db, dialect, log, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	r.owned = true
	return r, nil
}

func (r *Runner) provider() (*goose.Provider, error) {
	dialect, err := r.dialect.goose()
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(dialect, r.db, r.fsys)
	if err != nil {
		return nil, fmt.Errorf("configure goose: %w", err)
	}
	return p, nil
}

// Ensure applies pending migrations.
func (r *Runner) Ensure(ctx context.Context) error {
	p, err := r.provider()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	r.log.Info("applying migrations", "dialect", r.dialect, "source", r.source)
	results, err := p.Up(runCtx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, res := range results {
		r.log.Info("migration applied", "version", res.Source.Version, "duration_ms", res.Duration.Milliseconds())
	}
	r.log.Info("migrations applied", "count", len(results))
	return nil
}

// Status reports applied and pending migrations.
func (r *Runner) Status(ctx context.Context) error {
	p, err := r.provider()
	if err != nil {
		return err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	for _, st := range statuses {
		fields := []any{"version", st.Source.Version, "path", st.Source.Path, "state", string(st.State)}
		if !st.AppliedAt.IsZero() {
			fields = append(fields, "applied_at", st.AppliedAt.UTC().Format(time.RFC3339))
		}
		r.log.Info("migration status", fields...)
	}
	return nil
}

// Down rolls back migrations either to the previous version or a specific target version.
func (r *Runner) Down(ctx context.Context, targetVersion int64) error {
	p, err := r.provider()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if targetVersion > 0 {
		r.log.Info("rolling back migrations", "target", targetVersion)
		if _, err := p.DownTo(runCtx, targetVersion); err != nil {
			return fmt.Errorf("rollback to version %d: %w", targetVersion, err)
		}
	} else {
		r.log.Info("rolling back latest migration")
		if _, err := p.Down(runCtx); err != nil {
			return fmt.Errorf("rollback latest migration: %w", err)
		}
	}
	r.log.Info("rollback complete")
	return nil
}

// Version returns the current schema version.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	p, err := r.provider()
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

// Ping ensures the database connection is alive.
func (r *Runner) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close releases the connection when the runner opened it.
func (r *Runner) Close() {
	if r.owned {
		_ = r.db.Close()
	}
}
