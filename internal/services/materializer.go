package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"bilancio/internal/core"
)

// Materializer expands recurring templates into concrete ledger instances
// for a target month. Materialization is idempotent: rows that already
// exist for (budget, template, occurrence date) are never touched, so
// user edits to materialized instances survive repeated runs.
type Materializer struct {
	store Store
	group singleflight.Group
	now   func() time.Time
}

// MaterializeResult reports what one materialization pass created.
type MaterializeResult struct {
	Budget          *core.MonthlyBudget
	ExpensesCreated int
	IncomeCreated   int
}

func NewMaterializer(store Store) *Materializer {
	return &Materializer{
		store: store,
		now:   time.Now,
	}
}

// Materialize ensures the budget for (owner, month) exists and creates
// one ledger instance per missing (template, occurrence date) pair.
//
// Concurrent calls for the same owner and month are collapsed through
// singleflight; across processes the storage uniqueness constraints
// resolve races, with a conflicting insert treated as "already
// materialized". A failing insert aborts the pass with an error; rows
// created before the failure are kept (partial success over partial
// corruption).
func (m *Materializer) Materialize(ctx context.Context, ownerID int64, month core.Month) (MaterializeResult, error) {
	key := fmt.Sprintf("%d|%s", ownerID, month)
	v, err, _ := m.group.Do(key, func() (any, error) {
		return m.materialize(ctx, ownerID, month)
	})
	if err != nil {
		if res, ok := v.(MaterializeResult); ok {
			return res, err
		}
		return MaterializeResult{}, err
	}
	return v.(MaterializeResult), nil
}

func (m *Materializer) materialize(ctx context.Context, ownerID int64, month core.Month) (MaterializeResult, error) {
	var res MaterializeResult

	budget, err := m.store.EnsureBudget(ctx, ownerID, month)
	if err != nil {
		return res, fmt.Errorf("ensure budget %s: %w", month, err)
	}
	res.Budget = budget

	templates, err := m.store.ActiveAutoTemplates(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("load auto templates: %w", err)
	}

	slog.InfoContext(ctx, "Materializing recurring templates",
		"owner_id", ownerID,
		"month", month.String(),
		"templates", len(templates))

	today := dateOnly(m.now())

	for _, tpl := range templates {
		occurrences := Occurrences(tpl, month)
		if len(occurrences) == 0 {
			// Auto-enabled templates with no anchor fall out here; skipped
			// silently per contract.
			continue
		}

		created := 0
		for _, date := range occurrences {
			var madeRow bool
			var insErr error
			switch tpl.Kind {
			case core.KindExpense:
				madeRow, insErr = m.store.InsertExpenseIfAbsent(ctx, expenseInstance(tpl, budget.ID, date))
			case core.KindIncome:
				madeRow, insErr = m.store.InsertIncomeEventIfAbsent(ctx, incomeInstance(tpl, month, date, today))
			default:
				continue
			}
			if insErr != nil {
				return res, fmt.Errorf("materialize template %d for %s: %w", tpl.ID, date.Format("2006-01-02"), insErr)
			}
			if madeRow {
				created++
				if tpl.Kind == core.KindExpense {
					res.ExpensesCreated++
				} else {
					res.IncomeCreated++
				}
			}
		}

		if created > 0 {
			slog.InfoContext(ctx, "Created instances from template",
				"template_id", tpl.ID,
				"name", tpl.Name,
				"kind", string(tpl.Kind),
				"frequency", string(tpl.Frequency),
				"created", created)
		}
	}

	// Newly materialized income events change the month's stored income
	// total. A failed recomputation leaves a stale total, which is an
	// acceptable degraded state; the created rows stand either way.
	if res.IncomeCreated > 0 {
		if _, err := RecalculateIncome(ctx, m.store, ownerID, month); err != nil {
			slog.ErrorContext(ctx, "Failed to recompute income total after materialization",
				"owner_id", ownerID,
				"month", month.String(),
				"error", err)
		}
	}

	return res, nil
}

func expenseInstance(tpl core.RecurringTemplate, budgetID int64, date time.Time) core.Expense {
	e := core.Expense{
		BudgetID:   budgetID,
		TemplateID: &tpl.ID,
		Name:       tpl.Name,
		OccurredOn: date,
	}
	if tpl.DefaultAmount != nil {
		e.Allotted = *tpl.DefaultAmount
	}
	return e
}

// incomeInstance seeds the received amount from the template estimate only
// for occurrences on or before today; future-dated income starts at zero
// because it has not been received yet.
func incomeInstance(tpl core.RecurringTemplate, month core.Month, date, today time.Time) core.IncomeEvent {
	ev := core.IncomeEvent{
		OwnerID:    tpl.OwnerID,
		Month:      month,
		TemplateID: &tpl.ID,
		Label:      tpl.Name,
		OccurredOn: date,
	}
	if tpl.DefaultAmount != nil && !date.After(today) {
		ev.Amount = *tpl.DefaultAmount
	}
	return ev
}
