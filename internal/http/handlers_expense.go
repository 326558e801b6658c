package http

import (
	"net/http"

	"bilancio/internal/core"
)

type createExpenseRequest struct {
	Month    string  `json:"month"`
	Name     string  `json:"name"`
	Allotted *string `json:"allotted"`
	Date     *string `json:"date"`
	Notes    string  `json:"notes"`
}

// handleCreateExpense adds a one-off expense to an existing month budget.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	month, err := core.ParseMonth(req.Month)
	if err != nil {
		badRequest(w, "invalid month, expected YYYY-MM")
		return
	}

	budget, err := s.budgets.Get(r.Context(), ownerID(r), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	e := core.Expense{
		BudgetID:   budget.ID,
		Name:       sanitizeInput(req.Name),
		OccurredOn: month.FirstDay(),
		Notes:      sanitizeInput(req.Notes),
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			badRequest(w, "invalid date, expected YYYY-MM-DD")
			return
		}
		e.OccurredOn = date
	}
	if req.Allotted != nil {
		amount, err := parseAmount(*req.Allotted)
		if err != nil {
			badRequest(w, "invalid allotted amount")
			return
		}
		e.Allotted = amount
	}

	id, err := s.expenses.CreateOneOff(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type updateExpenseRequest struct {
	Name     string  `json:"name"`
	Allotted *string `json:"allotted"`
	Notes    string  `json:"notes"`
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid expense id")
		return
	}

	var req updateExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	e := core.Expense{
		ID:    id,
		Name:  sanitizeInput(req.Name),
		Notes: sanitizeInput(req.Notes),
	}
	if req.Allotted != nil {
		amount, err := parseAmount(*req.Allotted)
		if err != nil {
			badRequest(w, "invalid allotted amount")
			return
		}
		e.Allotted = amount
	} else {
		// Omitted means "leave it alone". Zero is a legitimate stored
		// value, so the current amount has to be carried forward.
		cur, err := s.expenses.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		e.Allotted = cur.Allotted
	}

	if err := s.expenses.Update(r.Context(), e); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid expense id")
		return
	}
	if err := s.expenses.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentRequest struct {
	Amount string  `json:"amount"`
	PaidOn *string `json:"paid_on"`
	Notes  string  `json:"notes"`
}

func (s *Server) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	expenseID, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid expense id")
		return
	}

	var req paymentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(w, "invalid payment amount")
		return
	}

	p := core.Payment{
		ExpenseID: expenseID,
		Amount:    amount,
		Notes:     sanitizeInput(req.Notes),
	}
	if req.PaidOn != nil {
		paidOn, err := parseDate(*req.PaidOn)
		if err != nil {
			badRequest(w, "invalid paid_on, expected YYYY-MM-DD")
			return
		}
		p.PaidOn = paidOn
	} else {
		p.PaidOn = today()
	}

	id, err := s.expenses.AddPayment(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid payment id")
		return
	}
	if err := s.expenses.DeletePayment(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
