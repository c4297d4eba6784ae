// Package sheets defines the budget history export port and its adapters.
package sheets

import (
	"context"

	"tally/internal/core"
)

// Ports for outbound adapters.
type (
	// HistoryWriter archives the budget months closed by a rollover.
	HistoryWriter interface {
		AppendHistory(ctx context.Context, rollovers []core.Rollover) error
	}
)
