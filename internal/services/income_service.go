package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
)

// IncomeService mutates income events and maintains the one stored
// aggregate in the system: MonthlyBudget.TotalIncome. Every mutation
// triggers a recomputation of the affected months' totals; a failed
// recomputation is logged and swallowed so the user's entered event is
// never lost to a stale-total write (the total heals on the next
// mutation).
type IncomeService struct {
	store  Store
	events EventPublisher
}

func NewIncomeService(store Store, events EventPublisher) *IncomeService {
	return &IncomeService{store: store, events: events}
}

// Create validates and stores a new income event, then recomputes the
// total of the month the event counts toward.
func (s *IncomeService) Create(ctx context.Context, ev core.IncomeEvent) (int64, error) {
	if err := ev.Validate(); err != nil {
		return 0, err
	}

	id, err := s.store.CreateIncomeEvent(ctx, ev)
	if err != nil {
		return 0, fmt.Errorf("create income event: %w", err)
	}

	s.recalculate(ctx, ev.OwnerID, ev.CountsToward())
	s.publish(ctx, ev.OwnerID, ev.CountsToward(), "income_created")
	return id, nil
}

// Get loads one income event.
func (s *IncomeService) Get(ctx context.Context, id int64) (*core.IncomeEvent, error) {
	return s.store.GetIncomeEvent(ctx, id)
}

// Update rewrites an income event. When the update moves the event's
// financial month (date change or deferral toggle), both the old and the
// new target months are recomputed.
func (s *IncomeService) Update(ctx context.Context, ev core.IncomeEvent) error {
	prev, err := s.store.GetIncomeEvent(ctx, ev.ID)
	if err != nil {
		return err
	}
	// Ownership and template linkage are immutable on update. Restore
	// them before validating so a template-backed event passes the
	// label requirement.
	ev.OwnerID = prev.OwnerID
	ev.TemplateID = prev.TemplateID
	if ev.Label == "" {
		ev.Label = prev.Label
	}

	if err := ev.Validate(); err != nil {
		return err
	}

	if err := s.store.UpdateIncomeEvent(ctx, ev); err != nil {
		return fmt.Errorf("update income event: %w", err)
	}

	s.recalculate(ctx, ev.OwnerID, prev.CountsToward())
	if ev.CountsToward() != prev.CountsToward() {
		s.recalculate(ctx, ev.OwnerID, ev.CountsToward())
	}
	s.publish(ctx, ev.OwnerID, ev.CountsToward(), "income_updated")
	return nil
}

// Delete removes a one-off income event. Template-backed events are not
// directly deletable; zero their amount or deactivate the template.
func (s *IncomeService) Delete(ctx context.Context, id int64) error {
	prev, err := s.store.GetIncomeEvent(ctx, id)
	if err != nil {
		return err
	}
	if prev.TemplateID != nil {
		return core.ErrTemplateBacked
	}

	if err := s.store.DeleteIncomeEvent(ctx, id); err != nil {
		return fmt.Errorf("delete income event: %w", err)
	}

	s.recalculate(ctx, prev.OwnerID, prev.CountsToward())
	s.publish(ctx, prev.OwnerID, prev.CountsToward(), "income_deleted")
	return nil
}

// EventsForMonth lists a month's income events by nominal identifier.
func (s *IncomeService) EventsForMonth(ctx context.Context, ownerID int64, month core.Month) ([]core.IncomeEvent, error) {
	return s.store.IncomeEventsForMonth(ctx, ownerID, month)
}

func (s *IncomeService) recalculate(ctx context.Context, ownerID int64, month core.Month) {
	if _, err := RecalculateIncome(ctx, s.store, ownerID, month); err != nil {
		slog.ErrorContext(ctx, "Failed to recompute income total",
			"owner_id", ownerID,
			"month", month.String(),
			"error", err)
	}
}

func (s *IncomeService) publish(ctx context.Context, ownerID int64, month core.Month, reason string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBudgetChanged(ctx, ownerID, month.String(), reason); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget-changed event",
			"owner_id", ownerID,
			"month", month.String(),
			"reason", reason,
			"error", err)
		// Export is eventually consistent; never fail the mutation.
	}
}

// RecalculateIncome recomputes and persists a budget's TotalIncome:
// the month's own events that are not deferred, plus the previous month's
// events that are. The budget is lazily created so a deferral landing in
// a not-yet-viewed month has a row to write to.
func RecalculateIncome(ctx context.Context, store Store, ownerID int64, month core.Month) (int64, error) {
	var total int64

	events, err := store.IncomeEventsForMonth(ctx, ownerID, month)
	if err != nil {
		return 0, fmt.Errorf("load income events for %s: %w", month, err)
	}
	for _, ev := range events {
		if !ev.ApplyToNextMonth {
			total += ev.Amount.Cents
		}
	}

	prevEvents, err := store.IncomeEventsForMonth(ctx, ownerID, month.Prev())
	if err != nil {
		return 0, fmt.Errorf("load income events for %s: %w", month.Prev(), err)
	}
	for _, ev := range prevEvents {
		if ev.ApplyToNextMonth {
			total += ev.Amount.Cents
		}
	}

	budget, err := store.EnsureBudget(ctx, ownerID, month)
	if err != nil {
		return 0, fmt.Errorf("ensure budget %s: %w", month, err)
	}
	if err := store.SetBudgetTotalIncome(ctx, budget.ID, total); err != nil {
		return 0, fmt.Errorf("persist income total for %s: %w", month, err)
	}

	slog.DebugContext(ctx, "Recomputed income total",
		"owner_id", ownerID,
		"month", month.String(),
		"total_cents", total)
	return total, nil
}
