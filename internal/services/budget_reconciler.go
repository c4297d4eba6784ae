package services

import (
	"fmt"
	"time"

	"tally/internal/core"
)

// BudgetReconciler recomputes budget spending from the expense history and
// rolls allocations over at month boundaries.
type BudgetReconciler struct {
	// Location defines month boundaries. Nil means UTC.
	Location *time.Location
}

type ReconcileResult struct {
	Budgets   []core.Budget
	Rollovers []core.Rollover
	Events    []core.AlertEvent // budget_threshold only; RaisedAt is left zero
}

// Reconcile brings every allocation to ref. It never fails on validated
// input and never modifies its arguments.
//
// An allocation whose month is earlier than ref is rolled over: the old month
// is archived into History, the allocation moves to ref with alertShown
// cleared, and no threshold check happens in the same call. An allocation
// already on ref has its spent recomputed and may raise one threshold event.
// An allocation later than ref is only recomputed for its own month.
func (r BudgetReconciler) Reconcile(budgets []core.Budget, expenses []core.Transaction, ref core.Period) ReconcileResult {
	res := ReconcileResult{Budgets: make([]core.Budget, 0, len(budgets))}
	spent := newSpendIndex(expenses, r.Location)

	for _, b := range budgets {
		b = b.Clone()
		switch p := b.Period(); {
		case p.Before(ref):
			entry := core.HistoryEntry{
				Month:  b.Month,
				Year:   b.Year,
				Amount: b.Amount,
				Spent:  spent.of(b.Category, p),
			}
			b.History = append(b.History, entry)
			b.Month, b.Year = ref.Month, ref.Year
			b.Spent = spent.of(b.Category, ref)
			b.AlertShown = false
			res.Rollovers = append(res.Rollovers, core.Rollover{BudgetID: b.ID, Category: b.Category, Entry: entry})

		case ref.Before(p):
			b.Spent = spent.of(b.Category, p)

		default:
			b.Spent = spent.of(b.Category, ref)
			if !b.AlertShown && b.Spent.Ratio(b.Amount).GreaterThanOrEqual(ThresholdRatio) {
				b.AlertShown = true
				res.Events = append(res.Events, thresholdEvent(b))
			}
		}
		res.Budgets = append(res.Budgets, b)
	}
	return res
}

// spendIndex sums expenses per category and month, computed lazily.
type spendIndex struct {
	expenses []core.Transaction
	loc      *time.Location
	sums     map[core.Period]map[string]core.Money
}

func newSpendIndex(expenses []core.Transaction, loc *time.Location) *spendIndex {
	return &spendIndex{expenses: expenses, loc: loc, sums: map[core.Period]map[string]core.Money{}}
}

func (s *spendIndex) of(category string, p core.Period) core.Money {
	byCat, ok := s.sums[p]
	if !ok {
		byCat = map[string]core.Money{}
		for _, e := range s.expenses {
			if p.Contains(e.Date, s.loc) {
				byCat[e.Category] = byCat[e.Category].Add(e.Amount)
			}
		}
		s.sums[p] = byCat
	}
	if m, ok := byCat[category]; ok {
		return m
	}
	return core.Zero
}

func thresholdEvent(b core.Budget) core.AlertEvent {
	pct := percent(b.Spent, b.Amount)
	spent, amount := b.Spent, b.Amount
	remaining := amount.Sub(spent)
	return core.AlertEvent{
		Kind: core.AlertBudgetThreshold,
		Payload: core.AlertPayload{
			Title:     "Budget Alert",
			Message:   fmt.Sprintf("You've used %d%% of your %s budget!", pct, b.Category),
			BudgetID:  b.ID,
			Category:  b.Category,
			Percent:   pct,
			Amount:    &amount,
			Spent:     &spent,
			Remaining: &remaining,
		},
	}
}

func percent(spent, amount core.Money) int {
	return int(spent.Ratio(amount).Shift(2).Round(0).IntPart())
}
