package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Monthly  Frequency = "monthly"
	Weekly   Frequency = "weekly"
	BiWeekly Frequency = "bi_weekly"
)

const (
	KindIncome  TemplateKind = "income"
	KindExpense TemplateKind = "expense"
)

type (
	Frequency    string
	TemplateKind string

	// RecurringTemplate is a user-defined recurring income or expense
	// definition. It expands into concrete ledger instances per month via
	// the occurrence rules; the template itself never carries month state.
	RecurringTemplate struct {
		ID            int64
		OwnerID       int64
		Kind          TemplateKind
		Name          string
		Frequency     Frequency
		AnchorDate    *time.Time // schedule anchor; required when AutoCreate is set
		DefaultAmount *Money     // estimated amount copied into new instances
		AutoCreate    bool
		DeletedAt     *time.Time // soft delete marker; nil means active
	}

	// MonthlyBudget is the per-owner, per-month ledger container.
	// TotalIncome is the one stored aggregate: it is rewritten whenever an
	// income event changes (see services.IncomeService); every other total
	// is recomputed on read.
	MonthlyBudget struct {
		ID          int64
		OwnerID     int64
		Month       Month
		TotalIncome Money
		FlexFund    Money
		BankBalance *Money // optional, manually entered
	}

	// Expense is a month-scoped ledger instance. TemplateID is nil for
	// one-off, user-entered rows. Spent is the live sum of the expense's
	// payments, loaded alongside the row and never stored.
	Expense struct {
		ID         int64
		BudgetID   int64
		TemplateID *int64
		Name       string
		Allotted   Money
		Spent      Money
		OccurredOn time.Time
		Notes      string
	}

	// IncomeEvent is money received (or expected) in a month. It belongs to
	// its nominal month's budget unless ApplyToNextMonth defers it to the
	// following month's totals.
	IncomeEvent struct {
		ID               int64
		OwnerID          int64
		Month            Month
		TemplateID       *int64
		Label            string // required for one-off events
		Amount           Money
		OccurredOn       time.Time
		ApplyToNextMonth bool
		Notes            string
	}

	// Payment records actual spending against an expense.
	Payment struct {
		ID        int64
		ExpenseID int64
		Amount    Money
		PaidOn    time.Time
		Notes     string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidMonth     = errors.New("invalid month identifier")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidKind      = errors.New("invalid template kind")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyLabel       = errors.New("empty label")
	ErrMissingAnchor    = errors.New("anchor date required for auto-created templates")
	ErrDuplicateName    = errors.New("active template with this name already exists")
	ErrTemplateBacked   = errors.New("template-backed instance cannot be deleted directly")
	ErrNotFound         = errors.New("not found")
)

// Active reports whether the template has not been soft-deleted.
func (t RecurringTemplate) Active() bool {
	return t.DeletedAt == nil
}

func (t RecurringTemplate) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if len(t.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	switch t.Kind {
	case KindIncome, KindExpense:
	default:
		return ErrInvalidKind
	}
	switch t.Frequency {
	case Monthly, Weekly, BiWeekly:
	default:
		return ErrInvalidFrequency
	}
	if t.AutoCreate && t.AnchorDate == nil {
		return ErrMissingAnchor
	}
	if t.DefaultAmount != nil && t.DefaultAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// OneOff reports whether the expense was entered directly rather than
// materialized from a template.
func (e Expense) OneOff() bool {
	return e.TemplateID == nil
}

func (e Expense) Validate() error {
	if e.TemplateID == nil && strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if e.Allotted.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Remaining is the allotted amount not yet spent. Negative when the
// expense is overspent.
func (e Expense) Remaining() Money {
	return Money{Cents: e.Allotted.Cents - e.Spent.Cents}
}

// Available clamps Remaining at zero.
func (e Expense) Available() Money {
	if r := e.Remaining(); r.Cents > 0 {
		return r
	}
	return Money{}
}

// SpentPercentage returns spent/allotted as a percentage rounded to one
// decimal place and capped at 100. An unallotted expense reports 0.
func (e Expense) SpentPercentage() float64 {
	if e.Allotted.Cents == 0 {
		return 0
	}
	pct := float64(e.Spent.Cents) / float64(e.Allotted.Cents) * 100
	pct = float64(int64(pct*10+0.5)) / 10
	if pct > 100 {
		return 100
	}
	return pct
}

// Paid reports whether the expense is fully covered by its payments.
func (e Expense) Paid() bool {
	return e.Spent.Cents >= e.Allotted.Cents
}

func (ev IncomeEvent) Validate() error {
	if ev.TemplateID == nil && strings.TrimSpace(ev.Label) == "" {
		return ErrEmptyLabel
	}
	if len(ev.Label) > 200 {
		return errors.New("label too long (max 200 characters)")
	}
	if ev.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if ev.Month.IsZero() {
		return ErrInvalidMonth
	}
	return nil
}

// CountsToward returns the month whose TotalIncome this event feeds:
// the nominal month, or the following one when the event is deferred.
func (ev IncomeEvent) CountsToward() Month {
	if ev.ApplyToNextMonth {
		return ev.Month.Next()
	}
	return ev.Month
}

func (p Payment) Validate() error {
	if p.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if p.PaidOn.IsZero() {
		return errors.New("payment date cannot be zero")
	}
	return nil
}
