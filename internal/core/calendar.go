package core

import "time"

// Period identifies a calendar month. Month is zero-based (0 = January) to
// match the persisted budget records.
type Period struct {
	Year  int
	Month int
}

// PeriodOf returns the month t falls in, evaluated in loc.
func PeriodOf(t time.Time, loc *time.Location) Period {
	t = t.In(location(loc))
	return Period{Year: t.Year(), Month: int(t.Month()) - 1}
}

// Window returns [first instant of the month, first instant of next month).
func (p Period) Window(loc *time.Location) (start, end time.Time) {
	start = time.Date(p.Year, time.Month(p.Month+1), 1, 0, 0, 0, 0, location(loc))
	end = start.AddDate(0, 1, 0)
	return start, end
}

// Contains reports whether t falls inside the month window.
func (p Period) Contains(t time.Time, loc *time.Location) bool {
	start, end := p.Window(loc)
	return !t.Before(start) && t.Before(end)
}

// Before reports whether p is an earlier month than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Add moves the period by n months (n may be negative).
func (p Period) Add(n int) Period {
	total := p.Year*12 + p.Month + n
	year, month := total/12, total%12
	if month < 0 {
		month += 12
		year--
	}
	return Period{Year: year, Month: month}
}

// Days returns the number of days in the month.
func (p Period) Days() int {
	return DaysIn(p.Year, time.Month(p.Month+1))
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(location(loc)), b.In(location(loc))
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
