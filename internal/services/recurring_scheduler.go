package services

import (
	"time"

	"tally/internal/core"
)

// RecurringScheduler materializes expenses from recurring rules that have
// come due.
type RecurringScheduler struct {
	// NewID generates identifiers for materialized expenses. Defaults to
	// core.NewID.
	NewID func() string
}

// TickResult is the outcome of one scheduler pass. Rules holds every input
// rule in order, with due ones advanced.
type TickResult struct {
	Due          []string // IDs of rules that fired
	Skipped      []string // IDs of rules with an unsupported frequency
	Rules        []core.RecurringRule
	Materialized []core.Transaction
}

// Tick fires every rule whose due date is at or before now. A fired rule
// produces exactly one expense dated now, even when several periods were
// missed, and its next due date is computed from now. The input slice is
// not modified.
func (s RecurringScheduler) Tick(rules []core.RecurringRule, now time.Time) TickResult {
	newID := s.NewID
	if newID == nil {
		newID = core.NewID
	}

	res := TickResult{Rules: make([]core.RecurringRule, 0, len(rules))}
	for _, r := range rules {
		r = r.Clone()
		if now.Before(r.NextDue) {
			res.Rules = append(res.Rules, r)
			continue
		}

		next, err := NextDueDate(r.Frequency, now, r.DayOfMonth)
		if err != nil {
			res.Skipped = append(res.Skipped, r.ID)
			res.Rules = append(res.Rules, r)
			continue
		}

		res.Materialized = append(res.Materialized, core.Transaction{
			ID:          newID(),
			Amount:      r.Amount,
			Category:    r.Category,
			Description: r.Description,
			Date:        now,
			CreatedAt:   now,
		})
		r.NextDue = next
		r.Notified = false
		res.Due = append(res.Due, r.ID)
		res.Rules = append(res.Rules, r)
	}
	return res
}
