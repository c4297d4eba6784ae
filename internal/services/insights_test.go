package services

import (
	"testing"
	"time"

	"tally/internal/core"
)

func TestBudgetsForPeriod(t *testing.T) {
	b := foodBudget()
	b.Spent = core.NewMoney(40000)
	b.History = []core.HistoryEntry{{Month: 4, Year: 2024, Amount: core.NewMoney(80000), Spent: core.NewMoney(90000)}}

	tests := []struct {
		name      string
		period    core.Period
		wantSpent int64
		wantAmt   int64
		archived  bool
	}{
		{"active month", core.Period{Year: 2024, Month: 5}, 40000, 100000, false},
		{"archived month", core.Period{Year: 2024, Month: 4}, 90000, 80000, true},
		{"unknown month", core.Period{Year: 2023, Month: 0}, 0, 100000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := BudgetsForPeriod([]core.Budget{b}, tt.period)[0]
			if !v.Spent.Equal(core.NewMoney(tt.wantSpent)) || !v.Amount.Equal(core.NewMoney(tt.wantAmt)) || v.Archived != tt.archived {
				t.Errorf("BudgetsForPeriod() = %+v", v)
			}
		})
	}
}

func TestSummarizeBudgets(t *testing.T) {
	views := []BudgetView{
		{Category: "Food", Amount: core.NewMoney(100), Spent: core.NewMoney(120)},
		{Category: "Rent", Amount: core.NewMoney(300), Spent: core.NewMoney(80)},
	}
	s := SummarizeBudgets(views)
	if !s.TotalBudget.Equal(core.NewMoney(400)) || !s.Remaining.Equal(core.NewMoney(200)) {
		t.Errorf("SummarizeBudgets() = %+v", s)
	}
	if s.UtilizationRate != 50 {
		t.Errorf("UtilizationRate = %v, want 50", s.UtilizationRate)
	}
	if len(s.OverBudget) != 1 || s.OverBudget[0] != "Food" {
		t.Errorf("OverBudget = %v, want [Food]", s.OverBudget)
	}
	if got := SummarizeBudgets(nil).UtilizationRate; got != 0 {
		t.Errorf("empty UtilizationRate = %v, want 0", got)
	}
}

func TestRecommend(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	expenses := []core.Transaction{
		expenseOn("a", "Food", 100, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		expenseOn("b", "Food", 200, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)),
		expenseOn("c", "Bus", 30, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		expenseOn("old", "Food", 999, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)),
	}
	recs := Recommend(expenses, now, time.UTC)
	if len(recs) != 2 || recs[0].Category != "Food" {
		t.Fatalf("Recommend() = %+v", recs)
	}
	// (300 / 3) * 1.1 = 110
	if !recs[0].Recommended.Equal(core.NewMoney(110)) || recs[0].TransactionCount != 2 {
		t.Errorf("Food recommendation = %+v", recs[0])
	}
	// (30 / 3) * 1.1 = 11
	if !recs[1].Recommended.Equal(core.NewMoney(11)) {
		t.Errorf("Bus recommendation = %+v", recs[1])
	}
}

func TestMonthlyStats(t *testing.T) {
	now := time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC)
	expenses := []core.Transaction{
		expenseOn("a", "Food", 100, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)),
		expenseOn("b", "Rent", 400, time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)),
		expenseOn("c", "Food", 200, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)),
		expenseOn("d", "Food", 50, time.Date(2024, 6, 9, 9, 0, 0, 0, time.UTC)),
		expenseOn("may", "Food", 1000, time.Date(2024, 5, 31, 9, 0, 0, 0, time.UTC)),
	}
	incomes := []core.Transaction{{ID: "i", Amount: core.NewMoney(5000), Description: "salary", Date: now}}
	b := foodBudget()
	b.Amount = core.NewMoney(1500)

	st := MonthlyStats(expenses, incomes, []core.Budget{b}, now, time.UTC)

	if !st.TotalSpent.Equal(core.NewMoney(750)) {
		t.Errorf("TotalSpent = %s, want 750", st.TotalSpent)
	}
	if st.BudgetUsage != 50 {
		t.Errorf("BudgetUsage = %v, want 50", st.BudgetUsage)
	}
	if st.TopCategory != "Rent" {
		t.Errorf("TopCategory = %q, want Rent", st.TopCategory)
	}
	if len(st.Recent) != 3 || st.Recent[0].ID != "a" || st.Recent[1].ID != "d" || st.Recent[2].ID != "b" {
		t.Errorf("Recent = %+v", st.Recent)
	}
	if !st.LastSevenDays[6].Equal(core.NewMoney(100)) || !st.LastSevenDays[5].Equal(core.NewMoney(50)) || !st.LastSevenDays[0].Equal(core.NewMoney(400)) {
		t.Errorf("LastSevenDays = %v", st.LastSevenDays)
	}
	// 750 over 10 elapsed days = 75 a day, 30 days in June
	if !st.AvgDailySpending.Equal(core.NewMoney(75)) || !st.Projected.Equal(core.NewMoney(2250)) {
		t.Errorf("avg = %s projected = %s, want 75 and 2250", st.AvgDailySpending, st.Projected)
	}
	if !st.Balance.Balance.Equal(core.NewMoney(5000 - 1750)) {
		t.Errorf("Balance = %s", st.Balance.Balance)
	}
}
