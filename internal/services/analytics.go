package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Range is the time span of an analytics report.
type Range string

const (
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeYear  Range = "year"
)

var ErrInvalidRange = errors.New("invalid range")

// ParseRange accepts week, month or year.
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case RangeWeek, RangeMonth, RangeYear:
		return r, nil
	}
	return "", fmt.Errorf("%w %q (want week, month or year)", ErrInvalidRange, s)
}

// Days is the divisor of the daily average: 7, 30 or 365.
func (r Range) Days() int {
	switch r {
	case RangeWeek:
		return 7
	case RangeYear:
		return 365
	}
	return 30
}

// bounds returns the start of the range containing now and the start of the
// range before it. The week is the trailing seven days; month and year start
// at their first midnight.
func (r Range) bounds(now time.Time, loc *time.Location) (start, prev time.Time) {
	local := now.In(location(loc))
	switch r {
	case RangeWeek:
		start = local.AddDate(0, 0, -7)
	case RangeYear:
		start = time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, local.Location())
	default:
		start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, local.Location())
	}
	return start, r.back(start)
}

// back moves t one range length into the past.
func (r Range) back(t time.Time) time.Time {
	switch r {
	case RangeWeek:
		return t.AddDate(0, 0, -7)
	case RangeYear:
		return t.AddDate(-1, 0, 0)
	}
	return t.AddDate(0, -1, 0)
}

// DayComparison is one day's spending next to the matching day of the
// previous range.
type DayComparison struct {
	Day      string // YYYY-MM-DD
	Current  core.Money
	Previous core.Money
}

// RangeInsights summarizes spending since the start of a range.
type RangeInsights struct {
	Range            Range
	Since            time.Time
	Total            core.Money
	AvgPerDay        core.Money
	TopCategory      string // empty when nothing was spent
	TopAmount        core.Money
	TransactionCount int
	ByCategory       []core.CategoryAmount // largest first
	Daily            []DayComparison       // last seven days with spending, oldest first
}

const comparedDays = 7

// Analytics reports the expenses dated at or after the start of r. An
// unknown range is treated as a month.
func Analytics(expenses []core.Transaction, r Range, now time.Time, loc *time.Location) RangeInsights {
	if _, err := ParseRange(string(r)); err != nil {
		r = RangeMonth
	}
	loc = location(loc)
	start, prev := r.bounds(now, loc)

	var current []core.Transaction
	daily := map[string]core.Money{}
	previous := map[string]core.Money{}
	prevKey := map[string]string{}
	for _, e := range expenses {
		day := e.Date.In(loc)
		key := day.Format(time.DateOnly)
		switch {
		case !day.Before(start):
			current = append(current, e)
			daily[key] = daily[key].Add(e.Amount)
			prevKey[key] = r.back(day).Format(time.DateOnly)
		case !day.Before(prev):
			previous[key] = previous[key].Add(e.Amount)
		}
	}

	total, byCategory := core.GroupByCategory(current)
	in := RangeInsights{
		Range:            r,
		Since:            start,
		Total:            total,
		AvgPerDay:        core.Money{Decimal: total.Decimal.Div(decimal.NewFromInt(int64(r.Days()))).Round(2)},
		TopAmount:        core.Zero,
		TransactionCount: len(current),
		ByCategory:       byCategory,
	}
	if len(byCategory) > 0 {
		in.TopCategory = byCategory[0].Name
		in.TopAmount = byCategory[0].Amount
	}

	days := make([]string, 0, len(daily))
	for k := range daily {
		days = append(days, k)
	}
	sort.Strings(days)
	if len(days) > comparedDays {
		days = days[len(days)-comparedDays:]
	}
	for _, k := range days {
		p, ok := previous[prevKey[k]]
		if !ok {
			p = core.Zero
		}
		in.Daily = append(in.Daily, DayComparison{Day: k, Current: daily[k], Previous: p})
	}
	return in
}
