// Package expense implements expense management scoped to the authenticated owner.
package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/splax/expensetracker/internal/domain"
	"github.com/splax/expensetracker/internal/repository"
)

var (
	// ErrNotFound covers both missing expenses and expenses owned by someone else.
	ErrNotFound     = errors.New("expense: not found")
	ErrInvalidInput = errors.New("expense: invalid input")
	ErrNoActor      = errors.New("expense: no authenticated user")
)

// Service exposes CRUD over the actor's own expenses.
type Service struct {
	expenses repository.ExpenseRepository
	logger   *slog.Logger
}

// New constructs a Service.
func New(expenses repository.ExpenseRepository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{expenses: expenses, logger: logger}
}

func normalize(in domain.ExpenseInput) (domain.ExpenseInput, error) {
	if in.Date.IsZero() {
		return in, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return in, fmt.Errorf("%w: amount must be a finite number", ErrInvalidInput)
	}
	in.Description = blankToNil(in.Description)
	in.Category = blankToNil(in.Category)
	return in, nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func mapErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Create stores a new expense owned by actor.
func (s Service) Create(ctx context.Context, actor *domain.User, in domain.ExpenseInput) (*domain.Expense, error) {
	if actor == nil {
		return nil, ErrNoActor
	}
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	e := &domain.Expense{OwnerID: actor.ID}
	in.Apply(e)
	if err := s.expenses.CreateExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("create expense: %w", mapErr(err))
	}
	s.logger.Info("expense created", "user_id", actor.ID, "expense_id", e.ID)
	return e, nil
}

// List returns every expense owned by actor.
func (s Service) List(ctx context.Context, actor *domain.User) ([]domain.Expense, error) {
	if actor == nil {
		return nil, ErrNoActor
	}
	list, err := s.expenses.ListExpensesByOwner(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return list, nil
}

// Get returns the expense id when actor owns it.
func (s Service) Get(ctx context.Context, actor *domain.User, id int64) (*domain.Expense, error) {
	if actor == nil {
		return nil, ErrNoActor
	}
	e, err := s.expenses.GetExpense(ctx, id, actor.ID)
	if err != nil {
		return nil, mapErr(err)
	}
	return e, nil
}

// Update overwrites the client fields of expense id. Ownership is not transferable.
func (s Service) Update(ctx context.Context, actor *domain.User, id int64, in domain.ExpenseInput) (*domain.Expense, error) {
	if actor == nil {
		return nil, ErrNoActor
	}
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	e, err := s.expenses.GetExpense(ctx, id, actor.ID)
	if err != nil {
		return nil, mapErr(err)
	}
	in.Apply(e)
	e.OwnerID = actor.ID
	if err := s.expenses.UpdateExpense(ctx, e); err != nil {
		return nil, mapErr(err)
	}
	s.logger.Info("expense updated", "user_id", actor.ID, "expense_id", e.ID)
	return e, nil
}

// Delete removes expense id and returns the removed record.
func (s Service) Delete(ctx context.Context, actor *domain.User, id int64) (*domain.Expense, error) {
	if actor == nil {
		return nil, ErrNoActor
	}
	e, err := s.expenses.GetExpense(ctx, id, actor.ID)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := s.expenses.DeleteExpense(ctx, id, actor.ID); err != nil {
		return nil, mapErr(err)
	}
	s.logger.Info("expense deleted", "user_id", actor.ID, "expense_id", id)
	return e, nil
}
