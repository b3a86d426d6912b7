// Package expensetest holds helpers shared by package tests.
package expensetest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/splax/expensetracker/internal/app/migrate"
	"github.com/splax/expensetracker/internal/repository/sqlite"
	"github.com/splax/expensetracker/pkg/crypto"
	"github.com/splax/expensetracker/pkg/jwt"
)

// Secret signs tokens in tests.
const Secret = "test-secret"

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSQLiteStore opens a migrated SQLite store in a temp dir, closed on cleanup.
func NewSQLiteStore(t testing.TB) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "expenses.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	runner, err := migrate.New(store.DB(), migrate.SQLite, DiscardLogger())
	if err != nil {
		t.Fatalf("migration runner: %v", err)
	}
	if err := runner.Ensure(context.Background()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return store
}

// NewHasher returns a bcrypt hasher at the minimum cost.
func NewHasher(t testing.TB) *crypto.Hasher {
	t.Helper()
	h, err := crypto.NewHasher(crypto.HasherConfig{Scheme: crypto.SchemeBcrypt, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return h
}

// NewTokens returns an HS256 token service signed with Secret.
func NewTokens(t testing.TB, opts ...jwt.Option) *jwt.Service {
	t.Helper()
	svc, err := jwt.NewService(jwt.Config{Secret: Secret}, opts...)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return svc
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// GetJSONField decodes a JSON object response and returns one of its fields.
// Integral numbers come back as int64, other numbers as float64.
func GetJSONField(w *httptest.ResponseRecorder, field string) (any, error) {
	var body map[string]any
	decoder := json.NewDecoder(w.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		return nil, err
	}
	val, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	if num, ok := val.(json.Number); ok {
		if i, err := num.Int64(); err == nil {
			return i, nil
		}
		if f, err := num.Float64(); err == nil {
			return f, nil
		}
	}
	return val, nil
}
