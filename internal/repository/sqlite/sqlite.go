// Package sqlite implements the repositories on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/splax/expensetracker/internal/domain"
	"github.com/splax/expensetracker/internal/repository"
)

const dateLayout = "2006-01-02"

// Store implements persistence interfaces on SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ repository.UserRepository    = (*Store)(nil)
	_ repository.ExpenseRepository = (*Store)(nil)
)

// Open opens (or creates) the database at path. The schema is applied separately
// by the migrate package.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// every new connection would get its own empty database
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{db: conn}, nil
}

// DB returns the underlying handle, used for migrations and health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func isConstraint(err error, code int) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == code
}

func mapUserError(err error) error {
	if !isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return repository.ErrDuplicateUsername
	case strings.Contains(msg, "users.email"):
		return repository.ErrDuplicateEmail
	}
	return err
}

// CreateUser inserts a user and fills in its ID and creation time.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.Username, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return mapUserError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

func (s *Store) getUser(ctx context.Context, column string, arg any) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at FROM users WHERE "+column+" = ?",
		arg,
	)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, "username", username)
}

// GetUserByEmail retrieves a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.getUser(ctx, "id", id)
}

// UpdateUser stores the email and password hash of an existing user.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET email = ?, password_hash = ? WHERE id = ?",
		user.Email, user.PasswordHash, user.ID,
	)
	if err != nil {
		return mapUserError(err)
	}
	return requireRow(result)
}

// CreateExpense inserts an expense for expense.OwnerID.
func (s *Store) CreateExpense(ctx context.Context, expense *domain.Expense) error {
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO expenses (user_id, amount, description, date, category, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		expense.OwnerID, expense.Amount, expense.Description, expense.Date.Format(dateLayout), expense.Category, expense.CreatedAt,
	)
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
			return repository.ErrNotFound
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	expense.ID = id
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*domain.Expense, error) {
	var (
		e    domain.Expense
		date string
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Amount, &e.Description, &date, &e.Category, &e.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse expense %d date: %w", e.ID, err)
	}
	e.Date = parsed
	return &e, nil
}

// ListExpensesByOwner returns the owner's expenses, newest date first.
func (s *Store) ListExpensesByOwner(ctx context.Context, ownerID int64) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, amount, description, date, category, created_at FROM expenses WHERE user_id = ? ORDER BY date DESC, id DESC",
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// GetExpense retrieves an expense only when it belongs to ownerID.
func (s *Store) GetExpense(ctx context.Context, id, ownerID int64) (*domain.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, amount, description, date, category, created_at FROM expenses WHERE id = ? AND user_id = ?",
		id, ownerID,
	)
	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// UpdateExpense overwrites the client fields of an expense owned by expense.OwnerID.
func (s *Store) UpdateExpense(ctx context.Context, expense *domain.Expense) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE expenses SET amount = ?, description = ?, date = ?, category = ? WHERE id = ? AND user_id = ?",
		expense.Amount, expense.Description, expense.Date.Format(dateLayout), expense.Category, expense.ID, expense.OwnerID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// DeleteExpense removes an expense owned by ownerID.
func (s *Store) DeleteExpense(ctx context.Context, id, ownerID int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ? AND user_id = ?", id, ownerID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
