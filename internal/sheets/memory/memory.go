// Package memory provides an in-process history writer for tests and the
// memory backend.
package memory

import (
	"context"
	"sync"

	"tally/internal/core"
	ports "tally/internal/sheets"
)

// Store records exported rollovers in memory.
type Store struct {
	mu        sync.Mutex
	rollovers []core.Rollover
}

var _ ports.HistoryWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) AppendHistory(ctx context.Context, rollovers []core.Rollover) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollovers = append(s.rollovers, rollovers...)
	return nil
}

// Rollovers returns a copy of everything appended so far.
func (s *Store) Rollovers() []core.Rollover {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Rollover(nil), s.rollovers...)
}

// ForBudget returns the archived months of one budget in append order.
func (s *Store) ForBudget(budgetID string) []core.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.HistoryEntry
	for _, r := range s.rollovers {
		if r.BudgetID == budgetID {
			out = append(out, r.Entry)
		}
	}
	return out
}
