package services

import (
	"testing"
	"time"

	"tally/internal/core"
)

func expenseOn(id, category string, amount int64, date time.Time) core.Transaction {
	return core.Transaction{
		ID:          id,
		Amount:      core.NewMoney(amount),
		Category:    category,
		Description: "expense " + id,
		Date:        date,
		CreatedAt:   date,
	}
}

func foodBudget() core.Budget {
	return core.Budget{ID: "b1", Category: "Food", Amount: core.NewMoney(100000), Spent: core.Zero, Month: 5, Year: 2024}
}

func TestReconcileFoodThresholdFiresOnce(t *testing.T) {
	r := BudgetReconciler{}
	june := core.Period{Year: 2024, Month: 5}
	expenses := []core.Transaction{expenseOn("e1", "Food", 95000, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))}

	first := r.Reconcile([]core.Budget{foodBudget()}, expenses, june)
	if len(first.Events) != 1 || first.Events[0].Kind != core.AlertBudgetThreshold {
		t.Fatalf("first Reconcile() events = %+v, want one budget_threshold", first.Events)
	}
	b := first.Budgets[0]
	if !b.Spent.Equal(core.NewMoney(95000)) || !b.AlertShown {
		t.Fatalf("budget after first reconcile = spent %s alertShown %v", b.Spent, b.AlertShown)
	}
	if first.Events[0].Payload.Percent != 95 {
		t.Errorf("Percent = %d, want 95", first.Events[0].Payload.Percent)
	}

	second := r.Reconcile(first.Budgets, expenses, june)
	if len(second.Events) != 0 {
		t.Errorf("second Reconcile() events = %+v, want none", second.Events)
	}
	if !second.Budgets[0].AlertShown {
		t.Errorf("alertShown reset within the same month")
	}
}

func TestReconcileSpentMatchesWindowedSum(t *testing.T) {
	june := core.Period{Year: 2024, Month: 5}
	expenses := []core.Transaction{
		expenseOn("a", "Food", 10, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		expenseOn("b", "Food", 20, time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)),
		expenseOn("c", "Food", 40, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)),  // next month
		expenseOn("d", "Food", 80, time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC)), // previous month
		expenseOn("e", "Rent", 160, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)),
	}

	res := BudgetReconciler{}.Reconcile([]core.Budget{foodBudget()}, expenses, june)
	if got := res.Budgets[0].Spent; !got.Equal(core.NewMoney(30)) {
		t.Errorf("Spent = %s, want 30", got)
	}
}

func TestReconcileUsesLocationForWindow(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	june := core.Period{Year: 2024, Month: 5}
	// 2024-05-31T20:00Z is already June 1st at UTC+7.
	expenses := []core.Transaction{expenseOn("a", "Food", 10, time.Date(2024, 5, 31, 20, 0, 0, 0, time.UTC))}

	res := BudgetReconciler{Location: loc}.Reconcile([]core.Budget{foodBudget()}, expenses, june)
	if got := res.Budgets[0].Spent; !got.Equal(core.NewMoney(10)) {
		t.Errorf("Spent = %s, want 10", got)
	}
}

func TestReconcileRollover(t *testing.T) {
	r := BudgetReconciler{}
	b := foodBudget()
	b.Spent = core.NewMoney(95000)
	b.AlertShown = true
	expenses := []core.Transaction{
		expenseOn("june", "Food", 95000, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)),
		expenseOn("july", "Food", 92000, time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)),
	}
	july := core.Period{Year: 2024, Month: 6}

	res := r.Reconcile([]core.Budget{b}, expenses, july)
	got := res.Budgets[0]
	if got.Month != 6 || got.Year != 2024 {
		t.Fatalf("period = %d/%d, want 6/2024", got.Month, got.Year)
	}
	if got.AlertShown {
		t.Errorf("alertShown not reset on rollover")
	}
	if !got.Spent.Equal(core.NewMoney(92000)) {
		t.Errorf("Spent = %s, want 92000", got.Spent)
	}
	if len(got.History) != 1 || got.History[0].Month != 5 || !got.History[0].Spent.Equal(core.NewMoney(95000)) {
		t.Fatalf("History = %+v, want one June entry with spent 95000", got.History)
	}
	if len(res.Rollovers) != 1 || res.Rollovers[0].BudgetID != "b1" {
		t.Errorf("Rollovers = %+v, want one for b1", res.Rollovers)
	}
	if len(res.Events) != 0 {
		t.Errorf("rollover call raised events: %+v", res.Events)
	}
	if !got.Amount.Equal(b.Amount) {
		t.Errorf("Amount changed during reconcile")
	}

	// Same month again: no second snapshot, threshold fires now.
	again := r.Reconcile(res.Budgets, expenses, july)
	if n := len(again.Budgets[0].History); n != 1 {
		t.Errorf("History length = %d after repeat, want 1", n)
	}
	if len(again.Rollovers) != 0 {
		t.Errorf("repeat reconcile rolled over again")
	}
	if len(again.Events) != 1 {
		t.Errorf("events = %d, want 1 threshold for the new month", len(again.Events))
	}
}

func TestReconcileSkippedMonthsArchiveOnce(t *testing.T) {
	b := foodBudget()
	res := BudgetReconciler{}.Reconcile([]core.Budget{b}, nil, core.Period{Year: 2024, Month: 9})
	got := res.Budgets[0]
	if len(got.History) != 1 || got.Month != 9 {
		t.Errorf("History = %+v month = %d, want one entry and month 9", got.History, got.Month)
	}
}

func TestReconcileBackwardReferenceDoesNotRollBack(t *testing.T) {
	b := foodBudget()
	expenses := []core.Transaction{expenseOn("a", "Food", 50, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))}
	res := BudgetReconciler{}.Reconcile([]core.Budget{b}, expenses, core.Period{Year: 2024, Month: 4})
	got := res.Budgets[0]
	if got.Month != 5 || len(got.History) != 0 || len(res.Rollovers) != 0 {
		t.Fatalf("budget moved on earlier reference: %+v", got)
	}
	if !got.Spent.Equal(core.NewMoney(50)) {
		t.Errorf("Spent = %s, want 50 for its own month", got.Spent)
	}
}

func TestReconcileDoesNotMutateInput(t *testing.T) {
	b := foodBudget()
	b.History = []core.HistoryEntry{{Month: 4, Year: 2024, Amount: core.NewMoney(1), Spent: core.NewMoney(1)}}
	in := []core.Budget{b}
	BudgetReconciler{}.Reconcile(in, nil, core.Period{Year: 2024, Month: 6})
	if in[0].Month != 5 || len(in[0].History) != 1 {
		t.Errorf("input budget mutated: %+v", in[0])
	}
}

func TestReconcileEmpty(t *testing.T) {
	res := BudgetReconciler{}.Reconcile(nil, nil, core.Period{Year: 2024})
	if len(res.Budgets) != 0 || len(res.Events) != 0 {
		t.Errorf("Reconcile(nil) = %+v, want empty", res)
	}
}
