package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/splax/expensetracker/internal/domain"
	"github.com/splax/expensetracker/internal/service/expense"
)

const dateLayout = "2006-01-02"

type expenseResponse struct {
	ID          int64   `json:"id"`
	Amount      float64 `json:"amount"`
	Description *string `json:"description"`
	Date        string  `json:"date"`
	Category    *string `json:"category"`
	UserID      int64   `json:"user_id"`
}

func newExpenseResponse(e *domain.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Amount:      e.Amount,
		Description: e.Description,
		Date:        e.Date.Format(dateLayout),
		Category:    e.Category,
		UserID:      e.OwnerID,
	}
}

// expensePayload has no owner field; unknown fields such as user_id are ignored.
type expensePayload struct {
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
	Date        string   `json:"date"`
	Category    *string  `json:"category"`
}

func decodeExpense(req *http.Request) (domain.ExpenseInput, string) {
	var payload expensePayload
	if err := decodeJSON(req, &payload); err != nil {
		return domain.ExpenseInput{}, "invalid JSON body"
	}
	if payload.Amount == nil {
		return domain.ExpenseInput{}, "amount is required"
	}
	if payload.Date == "" {
		return domain.ExpenseInput{}, "date is required"
	}
	date, err := time.Parse(dateLayout, payload.Date)
	if err != nil {
		return domain.ExpenseInput{}, "date must be formatted as YYYY-MM-DD"
	}
	return domain.ExpenseInput{
		Amount:      *payload.Amount,
		Description: payload.Description,
		Date:        date,
		Category:    payload.Category,
	}, ""
}

func expenseID(req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(req.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (r *Router) writeExpenseError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, expense.ErrNotFound):
		writeError(w, http.StatusNotFound, "Expense not found")
	case errors.Is(err, expense.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		r.internalError(w, req, err)
	}
}

func (r *Router) handleCreateExpense(w http.ResponseWriter, req *http.Request) {
	in, problem := decodeExpense(req)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}
	actor, _ := userFromContext(req.Context())
	e, err := r.expenses.Create(req.Context(), actor, in)
	if err != nil {
		r.writeExpenseError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, newExpenseResponse(e))
}

func (r *Router) handleListExpenses(w http.ResponseWriter, req *http.Request) {
	actor, _ := userFromContext(req.Context())
	list, err := r.expenses.List(req.Context(), actor)
	if err != nil {
		r.writeExpenseError(w, req, err)
		return
	}
	out := make([]expenseResponse, 0, len(list))
	for i := range list {
		out = append(out, newExpenseResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleGetExpense(w http.ResponseWriter, req *http.Request) {
	id, ok := expenseID(req)
	if !ok {
		writeError(w, http.StatusNotFound, "Expense not found")
		return
	}
	actor, _ := userFromContext(req.Context())
	e, err := r.expenses.Get(req.Context(), actor, id)
	if err != nil {
		r.writeExpenseError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseResponse(e))
}

func (r *Router) handleUpdateExpense(w http.ResponseWriter, req *http.Request) {
	id, ok := expenseID(req)
	if !ok {
		writeError(w, http.StatusNotFound, "Expense not found")
		return
	}
	in, problem := decodeExpense(req)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}
	actor, _ := userFromContext(req.Context())
	e, err := r.expenses.Update(req.Context(), actor, id, in)
	if err != nil {
		r.writeExpenseError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseResponse(e))
}

func (r *Router) handleDeleteExpense(w http.ResponseWriter, req *http.Request) {
	id, ok := expenseID(req)
	if !ok {
		writeError(w, http.StatusNotFound, "Expense not found")
		return
	}
	actor, _ := userFromContext(req.Context())
	e, err := r.expenses.Delete(req.Context(), actor, id)
	if err != nil {
		r.writeExpenseError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseResponse(e))
}
