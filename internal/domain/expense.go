package domain

import "time"

// Expense is a spending record owned by exactly one user.
type Expense struct {
	ID          int64
	OwnerID     int64
	Amount      float64
	Description *string
	Category    *string
	Date        time.Time
	CreatedAt   time.Time
}

// ExpenseInput carries the client-controlled fields of an expense.
// Ownership is never part of it.
type ExpenseInput struct {
	Amount      float64
	Description *string
	Category    *string
	Date        time.Time
}

// Apply copies the input fields onto e, leaving identity and ownership untouched.
func (in ExpenseInput) Apply(e *Expense) {
	e.Amount = in.Amount
	e.Description = in.Description
	e.Category = in.Category
	e.Date = in.Date
}
