package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/expensetracker/internal/domain"
	"github.com/splax/expensetracker/internal/repository"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"

	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository    = (*Repository)(nil)
	_ repository.ExpenseRepository = (*Repository)(nil)
)

// mapUserError converts unique violations on the users table into repository errors.
func mapUserError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case usernameConstraint:
			return repository.ErrDuplicateUsername
		case emailConstraint:
			return repository.ErrDuplicateEmail
		}
	}
	return err
}

// CreateUser inserts a user and fills in its ID and creation time.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	err := r.pool.QueryRow(ctx, query, user.Username, user.Email, user.PasswordHash, createdAt).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return mapUserError(err)
	}
	return nil
}

const userColumns = `id, username, email, password_hash, created_at`

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, "username", username)
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, "email", email)
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getUser(ctx, "id", id)
}

// UpdateUser stores the mutable user fields. Usernames never change.
func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	const query = `UPDATE users SET email = $1, password_hash = $2 WHERE id = $3`
	tag, err := r.pool.Exec(ctx, query, user.Email, user.PasswordHash, user.ID)
	if err != nil {
		return mapUserError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateExpense inserts an expense for expense.OwnerID.
func (r *Repository) CreateExpense(ctx context.Context, expense *domain.Expense) error {
	const query = `INSERT INTO expenses (user_id, amount, description, date, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	createdAt := expense.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	err := r.pool.QueryRow(ctx, query,
		expense.OwnerID,
		expense.Amount,
		expense.Description,
		expense.Date,
		expense.Category,
		createdAt,
	).Scan(&expense.ID, &expense.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return repository.ErrNotFound
		}
		return err
	}
	return nil
}

const expenseColumns = `id, user_id, amount, description, date, category, created_at`

func scanExpense(row pgx.Row) (*domain.Expense, error) {
	var e domain.Expense
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Amount, &e.Description, &e.Date, &e.Category, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExpensesByOwner returns the owner's expenses, newest date first.
func (r *Repository) ListExpensesByOwner(ctx context.Context, ownerID int64) ([]domain.Expense, error) {
	const query = `SELECT ` + expenseColumns + ` FROM expenses
		WHERE user_id = $1
		ORDER BY date DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, ownerID)
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

// GetExpense fetches an expense only when it belongs to ownerID.
func (r *Repository) GetExpense(ctx context.Context, id, ownerID int64) (*domain.Expense, error) {
	const query = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1 AND user_id = $2`
	e, err := scanExpense(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// UpdateExpense overwrites the client fields of an expense owned by expense.OwnerID.
func (r *Repository) UpdateExpense(ctx context.Context, expense *domain.Expense) error {
	const query = `UPDATE expenses
		SET amount = $1, description = $2, date = $3, category = $4
		WHERE id = $5 AND user_id = $6`
	tag, err := r.pool.Exec(ctx, query,
		expense.Amount,
		expense.Description,
		expense.Date,
		expense.Category,
		expense.ID,
		expense.OwnerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteExpense removes an expense owned by ownerID.
func (r *Repository) DeleteExpense(ctx context.Context, id, ownerID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
