package http

import (
	"net/http"
)

func (s *Server) handleEnsureCurrentBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := s.rollover.EnsureCurrentBudget(r.Context(), ownerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(*budget))
}

func (s *Server) handleCreateNextBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := s.rollover.CreateNextMonthBudget(r.Context(), ownerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Nil budget means the next month already existed.
	if budget == nil {
		writeJSON(w, http.StatusOK, map[string]any{"created": false})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"created": true,
		"budget":  toBudgetResponse(*budget),
	})
}

func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r)
	if err != nil {
		badRequest(w, "invalid month, expected YYYY-MM")
		return
	}

	res, err := s.materializer.Materialize(r.Context(), ownerID(r), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month":            month.String(),
		"expenses_created": res.ExpensesCreated,
		"income_created":   res.IncomeCreated,
	})
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r)
	if err != nil {
		badRequest(w, "invalid month, expected YYYY-MM")
		return
	}

	summary, err := s.aggregator.SummarizeMonth(r.Context(), ownerID(r), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(*summary))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r)
	if err != nil {
		badRequest(w, "invalid month, expected YYYY-MM")
		return
	}

	budget, err := s.budgets.Get(r.Context(), ownerID(r), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	expenses, err := s.expenses.ExpensesForBudget(r.Context(), budget.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

type bankBalanceRequest struct {
	// Null clears the recorded balance.
	BankBalance *string `json:"bank_balance"`
}

func (s *Server) handleSetBankBalance(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r)
	if err != nil {
		badRequest(w, "invalid month, expected YYYY-MM")
		return
	}

	var req bankBalanceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	balance, ok := optionalAmount(w, req.BankBalance, "bank_balance")
	if !ok {
		return
	}

	budget, err := s.budgets.SetBankBalance(r.Context(), ownerID(r), month, balance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(*budget))
}
