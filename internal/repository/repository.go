package repository

import (
	"context"

	"github.com/splax/expensetracker/internal/domain"
)

// UserRepository persists users. Username and email uniqueness is enforced by storage.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}

// ExpenseRepository persists expenses. Every lookup and mutation is scoped by owner.
type ExpenseRepository interface {
	CreateExpense(ctx context.Context, expense *domain.Expense) error
	ListExpensesByOwner(ctx context.Context, ownerID int64) ([]domain.Expense, error)
	GetExpense(ctx context.Context, id, ownerID int64) (*domain.Expense, error)
	UpdateExpense(ctx context.Context, expense *domain.Expense) error
	DeleteExpense(ctx context.Context, id, ownerID int64) error
}
