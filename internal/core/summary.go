package core

import (
	"sort"
	"time"
)

// Balance aggregates the two transaction collections.
type Balance struct {
	TotalIncome   Money `json:"totalIncome"`
	TotalExpenses Money `json:"totalExpenses"`
	Balance       Money `json:"balance"`
}

// ComputeBalance sums incomes and expenses. Empty inputs yield zero totals.
func ComputeBalance(incomes, expenses []Transaction) Balance {
	in := Sum(incomes)
	out := Sum(expenses)
	return Balance{
		TotalIncome:   in,
		TotalExpenses: out,
		Balance:       in.Sub(out),
	}
}

// Sum adds up the amounts of txs.
func Sum(txs []Transaction) Money {
	total := Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact summary for a specific month.
type MonthOverview struct {
	Period     Period
	Total      Money
	ByCategory []CategoryAmount // largest first
}

// Overview groups the expenses of one month by category.
func Overview(expenses []Transaction, p Period, loc *time.Location) MonthOverview {
	var month []Transaction
	for _, e := range expenses {
		if p.Contains(e.Date, loc) {
			month = append(month, e)
		}
	}
	total, byCategory := GroupByCategory(month)
	return MonthOverview{Period: p, Total: total, ByCategory: byCategory}
}

// GroupByCategory totals txs per category, largest first, ties by name.
func GroupByCategory(txs []Transaction) (Money, []CategoryAmount) {
	total := Zero
	totals := map[string]Money{}
	for _, t := range txs {
		total = total.Add(t.Amount)
		totals[t.Category] = totals[t.Category].Add(t.Amount)
	}
	var out []CategoryAmount
	for name, amount := range totals {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := a.Amount.Cmp(b.Amount.Decimal); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})
	return total, out
}
