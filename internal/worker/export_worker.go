// Package worker consumes budget change notifications and exports fresh
// month summaries to the configured destination.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/export"
	"bilancio/internal/services"
)

// ExportWorker recomputes and exports the summary for a budget whenever
// a change message arrives. Messages carry no payload beyond the key, so
// out-of-order or duplicated deliveries converge on the same row.
type ExportWorker struct {
	aggregator *services.Aggregator
	writer     export.SummaryWriter
}

func NewExportWorker(aggregator *services.Aggregator, writer export.SummaryWriter) *ExportWorker {
	return &ExportWorker{
		aggregator: aggregator,
		writer:     writer,
	}
}

// HandleBudgetChanged processes a single budget change message.
func (w *ExportWorker) HandleBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error {
	month, err := core.ParseMonth(msg.Month)
	if err != nil {
		// Malformed month will never parse on retry; drop it.
		slog.ErrorContext(ctx, "Dropping message with invalid month",
			"owner_id", msg.OwnerID,
			"month", msg.Month,
			"error", err)
		return nil
	}

	summary, err := w.aggregator.SummarizeMonth(ctx, msg.OwnerID, month)
	if errors.Is(err, core.ErrNotFound) {
		// The budget can be gone by the time we process the message.
		slog.WarnContext(ctx, "Budget no longer exists, skipping export",
			"owner_id", msg.OwnerID,
			"month", msg.Month)
		return nil
	}
	if err != nil {
		return fmt.Errorf("summarize month: %w", err)
	}

	ref, err := w.writer.WriteSummary(ctx, msg.OwnerID, *summary)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	slog.InfoContext(ctx, "Exported month summary",
		"owner_id", msg.OwnerID,
		"month", msg.Month,
		"reason", msg.Reason,
		"ref", ref)

	return nil
}
