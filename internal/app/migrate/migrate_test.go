package migrate

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func openSQLite(t *testing.T) *Runner {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := Open(SQLite, filepath.Join(t.TempDir(), "migrate.db"), log)
	if err != nil {
		t.Fatalf("open runner: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return count == 1
}

func TestEnsureAppliesEmbeddedMigrations(t *testing.T) {
	r := openSQLite(t)
	ctx := context.Background()

	if err := r.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := r.Ensure(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !tableExists(t, r.db, "users") || !tableExists(t, r.db, "expenses") {
		t.Fatalf("expected users and expenses tables")
	}
	version, err := r.Version(ctx)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected schema version 2, got %d", version)
	}

	// idempotent
	if err := r.Ensure(ctx); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if err := r.Status(ctx); err != nil {
		t.Fatalf("status: %v", err)
	}
}

func TestDownRollsBack(t *testing.T) {
	r := openSQLite(t)
	ctx := context.Background()
	if err := r.Ensure(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := r.Down(ctx, 0); err != nil {
		t.Fatalf("down: %v", err)
	}
	if tableExists(t, r.db, "expenses") {
		t.Fatalf("expected expenses table dropped")
	}
	if !tableExists(t, r.db, "users") {
		t.Fatalf("expected users table kept")
	}
}

func TestWithDirOverridesEmbedded(t *testing.T) {
	dir := t.TempDir()
	migration := "-- +goose Up\nCREATE TABLE probe (id INTEGER);\n\n-- +goose Down\nDROP TABLE probe;\n"
	if err := os.WriteFile(filepath.Join(dir, "00001_probe.sql"), []byte(migration), 0o600); err != nil {
		t.Fatalf("write migration: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := Open(SQLite, filepath.Join(t.TempDir(), "dir.db"), log, WithDir(dir))
	if err != nil {
		t.Fatalf("open runner: %v", err)
	}
	defer r.Close()
	if err := r.Ensure(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !tableExists(t, r.db, "probe") || tableExists(t, r.db, "users") {
		t.Fatalf("expected only the on-disk migration to apply")
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(nil, SQLite, nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
	if _, err := Open(Dialect("oracle"), "dsn", nil); err == nil {
		t.Fatalf("expected error for unknown dialect")
	}
	if _, err := Open(SQLite, "", nil); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
	if _, err := Open(SQLite, filepath.Join(t.TempDir(), "x.db"), nil, WithDir(filepath.Join(t.TempDir(), "missing"))); err == nil {
		t.Fatalf("expected error for missing migrations dir")
	}
}
