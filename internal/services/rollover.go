package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/core"
)

// Rollover orchestrates month lifecycle: making sure the current month's
// budget exists and creating the next month's ahead of time. Both paths
// run template materialization so a fresh budget is never empty.
type Rollover struct {
	store        Store
	materializer *Materializer
	now          func() time.Time

	// Concurrency bound for the worker sweep across owners.
	sweepLimit int
}

// defaultSweepLimit bounds the worker sweep when the caller passes a
// nonpositive limit.
const defaultSweepLimit = 4

func NewRollover(store Store, materializer *Materializer, sweepLimit int) *Rollover {
	if sweepLimit < 1 {
		sweepLimit = defaultSweepLimit
	}
	return &Rollover{
		store:        store,
		materializer: materializer,
		now:          time.Now,
		sweepLimit:   sweepLimit,
	}
}

// EnsureCurrentBudget finds or creates the budget for the current month
// and materializes its recurring instances. Idempotent; callers may run
// it on every month view.
func (r *Rollover) EnsureCurrentBudget(ctx context.Context, ownerID int64) (*core.MonthlyBudget, error) {
	month := core.MonthOf(r.now())
	res, err := r.materializer.Materialize(ctx, ownerID, month)
	if err != nil {
		return nil, fmt.Errorf("ensure current budget: %w", err)
	}
	return res.Budget, nil
}

// CreateNextMonthBudget creates the following month's budget and
// materializes it. When the budget already exists the call is a no-op and
// returns (nil, nil); callers branch on the nil budget to distinguish
// "created" from "already existed".
func (r *Rollover) CreateNextMonthBudget(ctx context.Context, ownerID int64) (*core.MonthlyBudget, error) {
	next := core.MonthOf(r.now()).Next()

	exists, err := r.store.BudgetExists(ctx, ownerID, next)
	if err != nil {
		return nil, fmt.Errorf("check next month budget: %w", err)
	}
	if exists {
		return nil, nil
	}

	res, err := r.materializer.Materialize(ctx, ownerID, next)
	if err != nil {
		return nil, fmt.Errorf("create next month budget: %w", err)
	}

	slog.InfoContext(ctx, "Created next month budget",
		"owner_id", ownerID,
		"month", next.String(),
		"expenses_created", res.ExpensesCreated,
		"income_created", res.IncomeCreated)
	return res.Budget, nil
}

// RunAll ensures the current month's budget for every known owner. Used
// by the rollover worker on a periodic ticker; per-owner failures are
// collected so one broken owner does not stall the sweep.
func (r *Rollover) RunAll(ctx context.Context) error {
	owners, err := r.store.Owners(ctx)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.sweepLimit)

	for _, ownerID := range owners {
		g.Go(func() error {
			if _, err := r.EnsureCurrentBudget(ctx, ownerID); err != nil {
				slog.ErrorContext(ctx, "Rollover failed for owner",
					"owner_id", ownerID,
					"error", err)
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
