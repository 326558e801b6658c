package services

import (
	"context"
	"errors"
	"testing"

	"bilancio/internal/core"
)

func TestSetBankBalance(t *testing.T) {
	store := newMemStore()
	svc := NewBudgetService(store, nil)
	month := core.Month{Year: 2025, Month: 3}
	seedBudget(t, store, 1, month, 200000)

	budget, err := svc.SetBankBalance(context.Background(), 1, month, cents(123456))
	if err != nil {
		t.Fatalf("SetBankBalance() error: %v", err)
	}
	if budget.BankBalance == nil || budget.BankBalance.Cents != 123456 {
		t.Errorf("BankBalance = %v, want 123456", budget.BankBalance)
	}

	// Nil clears the recorded balance.
	budget, err = svc.SetBankBalance(context.Background(), 1, month, nil)
	if err != nil {
		t.Fatalf("SetBankBalance(nil) error: %v", err)
	}
	if budget.BankBalance != nil {
		t.Errorf("BankBalance = %v, want nil", budget.BankBalance)
	}
}

func TestSetBankBalanceMissingBudget(t *testing.T) {
	svc := NewBudgetService(newMemStore(), nil)
	_, err := svc.SetBankBalance(context.Background(), 1, core.Month{Year: 2025, Month: 3}, cents(100))
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("SetBankBalance() err = %v, want ErrNotFound", err)
	}
}

func TestSetBankBalancePublishes(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := NewBudgetService(store, pub)
	month := core.Month{Year: 2025, Month: 3}
	seedBudget(t, store, 1, month, 0)

	if _, err := svc.SetBankBalance(context.Background(), 1, month, cents(500)); err != nil {
		t.Fatalf("SetBankBalance() error: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0] != "2025-03/bank_balance_updated" {
		t.Errorf("published = %q", pub.events[0])
	}
}

func TestSetFlexFund(t *testing.T) {
	store := newMemStore()
	svc := NewBudgetService(store, nil)
	month := core.Month{Year: 2025, Month: 3}
	seedBudget(t, store, 1, month, 0)

	budget, err := svc.SetFlexFund(context.Background(), 1, month, core.Money{Cents: 7500})
	if err != nil {
		t.Fatalf("SetFlexFund() error: %v", err)
	}
	if budget.FlexFund.Cents != 7500 {
		t.Errorf("FlexFund = %d, want 7500", budget.FlexFund.Cents)
	}

	if _, err := svc.SetFlexFund(context.Background(), 1, month, core.Money{Cents: -1}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("negative flex fund err = %v, want ErrInvalidAmount", err)
	}
}
