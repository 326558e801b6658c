package services

import (
	"context"
	"time"

	"bilancio/internal/core"
)

// Ports for the persistence collaborator. The SQLite implementation lives
// in internal/storage; tests use an in-memory fake.
type (
	TemplateStore interface {
		CreateTemplate(ctx context.Context, tpl core.RecurringTemplate) (int64, error)
		GetTemplate(ctx context.Context, id int64) (*core.RecurringTemplate, error)
		UpdateTemplate(ctx context.Context, tpl core.RecurringTemplate) error
		// SetTemplateDeletedAt transitions the soft-delete state: a non-nil
		// timestamp deactivates the template, nil reactivates it.
		SetTemplateDeletedAt(ctx context.Context, id int64, deletedAt *time.Time) error
		ActiveTemplates(ctx context.Context, ownerID int64, kind core.TemplateKind) ([]core.RecurringTemplate, error)
		ActiveAutoTemplates(ctx context.Context, ownerID int64) ([]core.RecurringTemplate, error)
		// ActiveTemplateNameExists checks name uniqueness among active
		// templates of one owner and kind. excludeID ignores one template
		// (pass 0 on create).
		ActiveTemplateNameExists(ctx context.Context, ownerID int64, kind core.TemplateKind, name string, excludeID int64) (bool, error)
	}

	BudgetStore interface {
		// EnsureBudget finds or creates the budget row for (owner, month).
		// This is the only lazy-creation path in the persistence layer.
		EnsureBudget(ctx context.Context, ownerID int64, month core.Month) (*core.MonthlyBudget, error)
		GetBudget(ctx context.Context, ownerID int64, month core.Month) (*core.MonthlyBudget, error)
		GetBudgetByID(ctx context.Context, id int64) (*core.MonthlyBudget, error)
		BudgetExists(ctx context.Context, ownerID int64, month core.Month) (bool, error)
		// SetBudgetTotalIncome persists the incrementally-maintained income
		// total directly, bypassing any derived-field recomputation.
		SetBudgetTotalIncome(ctx context.Context, budgetID int64, cents int64) error
		UpdateBudget(ctx context.Context, b core.MonthlyBudget) error
		Owners(ctx context.Context) ([]int64, error)
	}

	ExpenseStore interface {
		// InsertExpenseIfAbsent inserts a materialized expense unless one
		// already exists for (budget, template, occurrence date). A
		// uniqueness conflict is not an error; the bool reports whether a
		// row was created.
		InsertExpenseIfAbsent(ctx context.Context, e core.Expense) (bool, error)
		CreateExpense(ctx context.Context, e core.Expense) (int64, error)
		GetExpense(ctx context.Context, id int64) (*core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, id int64) error
		// ExpensesForBudget returns the budget's expenses with Spent loaded
		// as the live sum of each expense's payments.
		ExpensesForBudget(ctx context.Context, budgetID int64) ([]core.Expense, error)
	}

	IncomeStore interface {
		// InsertIncomeEventIfAbsent mirrors InsertExpenseIfAbsent for
		// template-backed income events keyed on (owner, month, template,
		// occurrence date).
		InsertIncomeEventIfAbsent(ctx context.Context, ev core.IncomeEvent) (bool, error)
		CreateIncomeEvent(ctx context.Context, ev core.IncomeEvent) (int64, error)
		GetIncomeEvent(ctx context.Context, id int64) (*core.IncomeEvent, error)
		UpdateIncomeEvent(ctx context.Context, ev core.IncomeEvent) error
		DeleteIncomeEvent(ctx context.Context, id int64) error
		// IncomeEventsForMonth returns events by nominal month identifier,
		// regardless of deferral flags.
		IncomeEventsForMonth(ctx context.Context, ownerID int64, month core.Month) ([]core.IncomeEvent, error)
	}

	PaymentStore interface {
		CreatePayment(ctx context.Context, p core.Payment) (int64, error)
		GetPayment(ctx context.Context, id int64) (*core.Payment, error)
		DeletePayment(ctx context.Context, id int64) error
	}

	// Store is the full persistence surface the engine needs.
	Store interface {
		TemplateStore
		BudgetStore
		ExpenseStore
		IncomeStore
		PaymentStore
	}

	// EventPublisher notifies downstream consumers (the export worker) that
	// a month's financial picture changed. Publishing is best effort and
	// must never fail a user mutation.
	EventPublisher interface {
		PublishBudgetChanged(ctx context.Context, ownerID int64, month string, reason string) error
	}
)
