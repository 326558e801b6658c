package http

import (
	"fmt"

	"bilancio/internal/core"
)

// Responses carry money as decimal strings ("1234.50") so clients never
// deal in cents or floats.

type templateResponse struct {
	ID            int64   `json:"id"`
	OwnerID       int64   `json:"owner_id"`
	Kind          string  `json:"kind"`
	Name          string  `json:"name"`
	Frequency     string  `json:"frequency"`
	AnchorDate    *string `json:"anchor_date"`
	DefaultAmount *string `json:"default_amount"`
	AutoCreate    bool    `json:"auto_create"`
	Active        bool    `json:"active"`
}

type budgetResponse struct {
	ID          int64   `json:"id"`
	OwnerID     int64   `json:"owner_id"`
	Month       string  `json:"month"`
	TotalIncome string  `json:"total_income"`
	FlexFund    string  `json:"flex_fund"`
	BankBalance *string `json:"bank_balance"`
}

type expenseResponse struct {
	ID              int64   `json:"id"`
	BudgetID        int64   `json:"budget_id"`
	TemplateID      *int64  `json:"template_id"`
	Name            string  `json:"name"`
	Allotted        string  `json:"allotted"`
	Spent           string  `json:"spent"`
	Remaining       string  `json:"remaining"`
	SpentPercentage float64 `json:"spent_percentage"`
	Paid            bool    `json:"paid"`
	OccurredOn      string  `json:"occurred_on"`
	Notes           string  `json:"notes"`
}

type incomeResponse struct {
	ID               int64  `json:"id"`
	OwnerID          int64  `json:"owner_id"`
	Month            string `json:"month"`
	TemplateID       *int64 `json:"template_id"`
	Label            string `json:"label"`
	Amount           string `json:"amount"`
	OccurredOn       string `json:"occurred_on"`
	ApplyToNextMonth bool   `json:"apply_to_next_month"`
	CountsToward     string `json:"counts_toward"`
	Notes            string `json:"notes"`
}

type summaryResponse struct {
	Month             string  `json:"month"`
	TotalIncome       string  `json:"total_income"`
	ExpectedIncome    string  `json:"expected_income"`
	TotalAllotted     string  `json:"total_allotted"`
	TotalSpent        string  `json:"total_spent"`
	RemainingToAssign string  `json:"remaining_to_assign"`
	Unassigned        string  `json:"unassigned"`
	FlexFund          string  `json:"flex_fund"`
	BankBalance       *string `json:"bank_balance"`
	BankDifference    *string `json:"bank_difference"`
	BankMatch         bool    `json:"bank_match"`
}

// formatCents renders cents as a decimal string with two places.
func formatCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func moneyString(m core.Money) string {
	return formatCents(m.Cents)
}

func moneyStringPtr(m *core.Money) *string {
	if m == nil {
		return nil
	}
	s := formatCents(m.Cents)
	return &s
}

func toTemplateResponse(t core.RecurringTemplate) templateResponse {
	resp := templateResponse{
		ID:         t.ID,
		OwnerID:    t.OwnerID,
		Kind:       string(t.Kind),
		Name:       t.Name,
		Frequency:  string(t.Frequency),
		AutoCreate: t.AutoCreate,
		Active:     t.Active(),
	}
	if t.AnchorDate != nil {
		s := t.AnchorDate.Format("2006-01-02")
		resp.AnchorDate = &s
	}
	if t.DefaultAmount != nil {
		s := formatCents(t.DefaultAmount.Cents)
		resp.DefaultAmount = &s
	}
	return resp
}

func toBudgetResponse(b core.MonthlyBudget) budgetResponse {
	return budgetResponse{
		ID:          b.ID,
		OwnerID:     b.OwnerID,
		Month:       b.Month.String(),
		TotalIncome: moneyString(b.TotalIncome),
		FlexFund:    moneyString(b.FlexFund),
		BankBalance: moneyStringPtr(b.BankBalance),
	}
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:              e.ID,
		BudgetID:        e.BudgetID,
		TemplateID:      e.TemplateID,
		Name:            e.Name,
		Allotted:        moneyString(e.Allotted),
		Spent:           moneyString(e.Spent),
		Remaining:       moneyString(e.Remaining()),
		SpentPercentage: e.SpentPercentage(),
		Paid:            e.Paid(),
		OccurredOn:      e.OccurredOn.Format("2006-01-02"),
		Notes:           e.Notes,
	}
}

func toIncomeResponse(ev core.IncomeEvent) incomeResponse {
	return incomeResponse{
		ID:               ev.ID,
		OwnerID:          ev.OwnerID,
		Month:            ev.Month.String(),
		TemplateID:       ev.TemplateID,
		Label:            ev.Label,
		Amount:           moneyString(ev.Amount),
		OccurredOn:       ev.OccurredOn.Format("2006-01-02"),
		ApplyToNextMonth: ev.ApplyToNextMonth,
		CountsToward:     ev.CountsToward().String(),
		Notes:            ev.Notes,
	}
}

func toSummaryResponse(s core.MonthSummary) summaryResponse {
	return summaryResponse{
		Month:             s.Month.String(),
		TotalIncome:       moneyString(s.TotalIncome),
		ExpectedIncome:    moneyString(s.ExpectedIncome),
		TotalAllotted:     moneyString(s.TotalAllotted),
		TotalSpent:        moneyString(s.TotalSpent),
		RemainingToAssign: moneyString(s.RemainingToAssign),
		Unassigned:        moneyString(s.Unassigned),
		FlexFund:          moneyString(s.FlexFund),
		BankBalance:       moneyStringPtr(s.BankBalance),
		BankDifference:    moneyStringPtr(s.BankDifference),
		BankMatch:         s.BankMatch,
	}
}
