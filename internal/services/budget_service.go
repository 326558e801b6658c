package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
)

// BudgetService covers direct budget-row operations that are not part of
// materialization or aggregation: reads by month and the manually entered
// bank balance.
type BudgetService struct {
	store  Store
	events EventPublisher
}

func NewBudgetService(store Store, events EventPublisher) *BudgetService {
	return &BudgetService{store: store, events: events}
}

// Get returns the budget for (owner, month) or core.ErrNotFound.
func (s *BudgetService) Get(ctx context.Context, ownerID int64, month core.Month) (*core.MonthlyBudget, error) {
	return s.store.GetBudget(ctx, ownerID, month)
}

// SetBankBalance records the owner's actual bank balance for the month,
// or clears it when balance is nil. The budget must already exist.
func (s *BudgetService) SetBankBalance(ctx context.Context, ownerID int64, month core.Month, balance *core.Money) (*core.MonthlyBudget, error) {
	budget, err := s.store.GetBudget(ctx, ownerID, month)
	if err != nil {
		return nil, err
	}

	budget.BankBalance = balance
	if err := s.store.UpdateBudget(ctx, *budget); err != nil {
		return nil, fmt.Errorf("update bank balance: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishBudgetChanged(ctx, ownerID, month.String(), "bank_balance_updated"); err != nil {
			slog.ErrorContext(ctx, "Failed to publish budget-changed event",
				"owner_id", ownerID,
				"month", month.String(),
				"error", err)
		}
	}
	return budget, nil
}

// SetFlexFund records the month's flexible fund amount.
func (s *BudgetService) SetFlexFund(ctx context.Context, ownerID int64, month core.Month, amount core.Money) (*core.MonthlyBudget, error) {
	if amount.Cents < 0 {
		return nil, core.ErrInvalidAmount
	}

	budget, err := s.store.GetBudget(ctx, ownerID, month)
	if err != nil {
		return nil, err
	}

	budget.FlexFund = amount
	if err := s.store.UpdateBudget(ctx, *budget); err != nil {
		return nil, fmt.Errorf("update flex fund: %w", err)
	}
	return budget, nil
}
