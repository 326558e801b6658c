package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
)

// ExpenseService handles one-off expense entry, expense edits and
// payment recording. The "spent" amount of an expense is never stored;
// it is always the live sum of its payments.
type ExpenseService struct {
	store  Store
	events EventPublisher
}

func NewExpenseService(store Store, events EventPublisher) *ExpenseService {
	return &ExpenseService{store: store, events: events}
}

// CreateOneOff adds a user-entered expense to a budget. One-off rows
// carry no template reference and must bring their own name.
func (s *ExpenseService) CreateOneOff(ctx context.Context, e core.Expense) (int64, error) {
	e.TemplateID = nil
	if err := e.Validate(); err != nil {
		return 0, err
	}

	budget, err := s.store.GetBudgetByID(ctx, e.BudgetID)
	if err != nil {
		return 0, err
	}

	id, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}

	s.publish(ctx, budget, "expense_created")
	return id, nil
}

// Get loads one expense with its live spent sum.
func (s *ExpenseService) Get(ctx context.Context, id int64) (*core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

// Update rewrites an expense's allotted amount, name and notes. The
// template linkage, budget and occurrence date are immutable.
func (s *ExpenseService) Update(ctx context.Context, e core.Expense) error {
	prev, err := s.store.GetExpense(ctx, e.ID)
	if err != nil {
		return err
	}
	e.BudgetID = prev.BudgetID
	e.TemplateID = prev.TemplateID
	e.OccurredOn = prev.OccurredOn
	if e.TemplateID != nil && e.Name == "" {
		e.Name = prev.Name
	}
	if err := e.Validate(); err != nil {
		return err
	}

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	if budget, err := s.store.GetBudgetByID(ctx, e.BudgetID); err == nil {
		s.publish(ctx, budget, "expense_updated")
	}
	return nil
}

// Delete removes a one-off expense and, via cascade, its payments.
// Template-backed expenses are not directly deletable: deactivate or
// delete the template instead.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	prev, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if !prev.OneOff() {
		return core.ErrTemplateBacked
	}

	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	if budget, err := s.store.GetBudgetByID(ctx, prev.BudgetID); err == nil {
		s.publish(ctx, budget, "expense_deleted")
	}
	return nil
}

// AddPayment records spending against an expense.
func (s *ExpenseService) AddPayment(ctx context.Context, p core.Payment) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	expense, err := s.store.GetExpense(ctx, p.ExpenseID)
	if err != nil {
		return 0, err
	}

	id, err := s.store.CreatePayment(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("create payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment recorded",
		"expense_id", expense.ID,
		"amount_cents", p.Amount.Cents)

	if budget, err := s.store.GetBudgetByID(ctx, expense.BudgetID); err == nil {
		s.publish(ctx, budget, "payment_created")
	}
	return id, nil
}

// DeletePayment removes a payment, lowering the expense's live spent sum.
func (s *ExpenseService) DeletePayment(ctx context.Context, id int64) error {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeletePayment(ctx, id); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}

	if expense, err := s.store.GetExpense(ctx, p.ExpenseID); err == nil {
		if budget, err := s.store.GetBudgetByID(ctx, expense.BudgetID); err == nil {
			s.publish(ctx, budget, "payment_deleted")
		}
	}
	return nil
}

// ExpensesForBudget lists a budget's expenses with live spent sums.
func (s *ExpenseService) ExpensesForBudget(ctx context.Context, budgetID int64) ([]core.Expense, error) {
	return s.store.ExpensesForBudget(ctx, budgetID)
}

func (s *ExpenseService) publish(ctx context.Context, budget *core.MonthlyBudget, reason string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBudgetChanged(ctx, budget.OwnerID, budget.Month.String(), reason); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget-changed event",
			"owner_id", budget.OwnerID,
			"month", budget.Month.String(),
			"reason", reason,
			"error", err)
	}
}
