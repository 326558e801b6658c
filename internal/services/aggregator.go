package services

import (
	"context"
	"fmt"

	"bilancio/internal/core"
)

// Aggregator computes a budget's derived totals. Nothing here is cached:
// every call reads the current rows and recomputes, so the summary can
// never drift from the ledger. The single stored aggregate, TotalIncome,
// is read from the budget row and maintained elsewhere (IncomeService).
type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// SummarizeMonth loads the budget for (owner, month) and summarizes it.
// Returns core.ErrNotFound when the month has no budget; it never creates
// one; lazy creation is the materializer's job.
func (a *Aggregator) SummarizeMonth(ctx context.Context, ownerID int64, month core.Month) (*core.MonthSummary, error) {
	budget, err := a.store.GetBudget(ctx, ownerID, month)
	if err != nil {
		return nil, err
	}
	return a.Summarize(ctx, budget)
}

// Summarize computes the month summary for a loaded budget.
func (a *Aggregator) Summarize(ctx context.Context, budget *core.MonthlyBudget) (*core.MonthSummary, error) {
	expenses, err := a.store.ExpensesForBudget(ctx, budget.ID)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	var allotted, spent int64
	for _, e := range expenses {
		allotted += e.Allotted.Cents
		spent += e.Spent.Cents
	}

	expected, err := a.expectedIncome(ctx, budget.OwnerID, budget.Month)
	if err != nil {
		return nil, fmt.Errorf("compute expected income: %w", err)
	}

	remaining := budget.TotalIncome.Cents - allotted
	unassigned := remaining
	if unassigned < 0 {
		unassigned = 0
	}

	s := &core.MonthSummary{
		Month:             budget.Month,
		TotalIncome:       budget.TotalIncome,
		ExpectedIncome:    core.Money{Cents: expected},
		TotalAllotted:     core.Money{Cents: allotted},
		TotalSpent:        core.Money{Cents: spent},
		RemainingToAssign: core.Money{Cents: remaining},
		Unassigned:        core.Money{Cents: unassigned},
		FlexFund:          budget.FlexFund,
		BankBalance:       budget.BankBalance,
		BankMatch:         true,
	}

	if budget.BankBalance != nil {
		diff := budget.BankBalance.Cents - (budget.TotalIncome.Cents - spent)
		s.BankDifference = &core.Money{Cents: diff}
		if diff < 0 {
			diff = -diff
		}
		s.BankMatch = diff <= core.BankMatchToleranceCents
	}

	return s, nil
}

// expectedIncome sums occurrence count x estimated amount over the
// owner's active auto income templates. Display-only; it is distinct from
// the stored actual income total and never persisted.
func (a *Aggregator) expectedIncome(ctx context.Context, ownerID int64, month core.Month) (int64, error) {
	templates, err := a.store.ActiveTemplates(ctx, ownerID, core.KindIncome)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, tpl := range templates {
		if tpl.DefaultAmount == nil {
			continue
		}
		total += int64(len(Occurrences(tpl, month))) * tpl.DefaultAmount.Cents
	}
	return total, nil
}
