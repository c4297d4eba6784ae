package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// BudgetView is an allocation as seen for one month.
type BudgetView struct {
	BudgetID  string
	Category  string
	Amount    core.Money
	Spent     core.Money
	Remaining core.Money
	Percent   int
	Archived  bool // figures come from history
}

// BudgetsForPeriod shows every allocation for p: the live figures when the
// allocation is active in p, the history entry for p when one exists, and
// the current amount with nothing spent otherwise.
func BudgetsForPeriod(budgets []core.Budget, p core.Period) []BudgetView {
	views := make([]BudgetView, 0, len(budgets))
	for _, b := range budgets {
		v := BudgetView{BudgetID: b.ID, Category: b.Category, Amount: b.Amount, Spent: core.Zero}
		if b.Period() == p {
			v.Spent = b.Spent
		} else {
			for _, h := range b.History {
				if h.Month == p.Month && h.Year == p.Year {
					v.Amount, v.Spent, v.Archived = h.Amount, h.Spent, true
					break
				}
			}
		}
		v.Remaining = v.Amount.Sub(v.Spent)
		v.Percent = percent(v.Spent, v.Amount)
		views = append(views, v)
	}
	return views
}

// BudgetSummary totals a set of budget views.
type BudgetSummary struct {
	TotalBudget     core.Money
	TotalSpent      core.Money
	Remaining       core.Money
	UtilizationRate float64 // percent, 0 when nothing is budgeted
	OverBudget      []string
}

func SummarizeBudgets(views []BudgetView) BudgetSummary {
	s := BudgetSummary{TotalBudget: core.Zero, TotalSpent: core.Zero}
	for _, v := range views {
		s.TotalBudget = s.TotalBudget.Add(v.Amount)
		s.TotalSpent = s.TotalSpent.Add(v.Spent)
		if v.Spent.GreaterThan(v.Amount.Decimal) {
			s.OverBudget = append(s.OverBudget, v.Category)
		}
	}
	s.Remaining = s.TotalBudget.Sub(s.TotalSpent)
	rate, _ := s.TotalSpent.Ratio(s.TotalBudget).Shift(2).Float64()
	s.UtilizationRate = core.Finite(rate)
	return s
}

// Recommendation suggests a monthly allocation for one category.
type Recommendation struct {
	Category         string
	Recommended      core.Money
	MonthlyAverage   core.Money
	TransactionCount int
}

var recommendationBuffer = decimal.RequireFromString("1.1")

// Recommend averages each category's spending since the first day of the
// month three months before now over three months, adds a 10% buffer and
// rounds up to a whole unit. Results are sorted by average, largest first.
func Recommend(expenses []core.Transaction, now time.Time, loc *time.Location) []Recommendation {
	since, _ := core.PeriodOf(now, loc).Add(-3).Window(loc)
	three := decimal.NewFromInt(3)

	totals := map[string]core.Money{}
	counts := map[string]int{}
	for _, e := range expenses {
		if e.Date.Before(since) {
			continue
		}
		totals[e.Category] = totals[e.Category].Add(e.Amount)
		counts[e.Category]++
	}

	recs := make([]Recommendation, 0, len(totals))
	for cat, total := range totals {
		avg := total.Decimal.Div(three)
		recs = append(recs, Recommendation{
			Category:         cat,
			Recommended:      core.Money{Decimal: avg.Mul(recommendationBuffer).Ceil()},
			MonthlyAverage:   core.Money{Decimal: avg.Round(2)},
			TransactionCount: counts[cat],
		})
	}
	sort.Slice(recs, func(i, j int) bool {
		if c := recs[i].MonthlyAverage.Cmp(recs[j].MonthlyAverage.Decimal); c != 0 {
			return c > 0
		}
		return recs[i].Category < recs[j].Category
	})
	return recs
}

// MonthStats is the dashboard summary for the month containing now.
type MonthStats struct {
	Period           core.Period
	TotalSpent       core.Money
	TotalBudget      core.Money
	BudgetUsage      float64 // percent of the month's budgets spent
	TopCategory      string  // empty when nothing was spent
	Recent           []core.Transaction
	LastSevenDays    [7]core.Money // oldest first, today last
	AvgDailySpending core.Money
	Projected        core.Money
	Balance          core.Balance
}

// MonthlyStats summarizes the current month. The daily average is taken
// over the days elapsed so far and projected over the whole month.
func MonthlyStats(expenses, incomes []core.Transaction, budgets []core.Budget, now time.Time, loc *time.Location) MonthStats {
	p := core.PeriodOf(now, loc)
	ov := core.Overview(expenses, p, loc)
	st := MonthStats{
		Period:      p,
		TotalSpent:  ov.Total,
		TotalBudget: core.Zero,
		Balance:     core.ComputeBalance(incomes, expenses),
	}
	if len(ov.ByCategory) > 0 {
		st.TopCategory = ov.ByCategory[0].Name
	}

	for _, v := range BudgetsForPeriod(budgets, p) {
		st.TotalBudget = st.TotalBudget.Add(v.Amount)
	}
	usage, _ := ov.Total.Ratio(st.TotalBudget).Shift(2).Float64()
	st.BudgetUsage = core.Finite(usage)

	var month []core.Transaction
	for _, e := range expenses {
		if p.Contains(e.Date, loc) {
			month = append(month, e)
		}
	}
	sort.SliceStable(month, func(i, j int) bool { return month[i].Date.After(month[j].Date) })
	if len(month) > 3 {
		month = month[:3]
	}
	st.Recent = month

	local := now.In(location(loc))
	slot := map[string]int{}
	for i := range st.LastSevenDays {
		st.LastSevenDays[i] = core.Zero
		slot[local.AddDate(0, 0, i-6).Format(time.DateOnly)] = i
	}
	for _, e := range expenses {
		if i, ok := slot[e.Date.In(local.Location()).Format(time.DateOnly)]; ok {
			st.LastSevenDays[i] = st.LastSevenDays[i].Add(e.Amount)
		}
	}

	elapsed := decimal.NewFromInt(int64(local.Day()))
	avg := ov.Total.Decimal.Div(elapsed)
	st.AvgDailySpending = core.Money{Decimal: avg.Round(2)}
	st.Projected = core.Money{Decimal: avg.Mul(decimal.NewFromInt(int64(p.Days()))).Round(0)}
	return st
}
