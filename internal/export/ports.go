package export

import (
	"context"

	"bilancio/internal/core"
)

// Ports for outbound summary adapters.
type (
	// SummaryWriter persists a month summary to an external destination.
	// Writes are keyed by (owner, month): a second write for the same key
	// replaces the previous one.
	SummaryWriter interface {
		WriteSummary(ctx context.Context, ownerID int64, s core.MonthSummary) (ref string, err error)
	}
)
