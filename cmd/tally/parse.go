package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"tally/internal/core"
)

var errUsage = errors.New("invalid usage")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageErr("%s: %v", fs.Name(), err)
	}
	return nil
}

// splitID takes a leading positional id off args so flags may follow it.
func splitID(args []string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", nil, usageErr("missing record id")
	}
	return args[0], args[1:], nil
}

// parseDate accepts YYYY-MM-DD (midnight in loc) or RFC 3339. Empty input
// gives the zero time.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, usageErr("invalid date %q: use YYYY-MM-DD", s)
	}
	return t, nil
}

// parseMonth accepts YYYY-MM. Empty input gives the month containing now.
func parseMonth(s string, now time.Time, loc *time.Location) (core.Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.PeriodOf(now, loc), nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return core.Period{}, usageErr("invalid month %q: use YYYY-MM", s)
	}
	return core.Period{Year: t.Year(), Month: int(t.Month()) - 1}, nil
}

func parseAmount(s string) (core.Money, error) {
	if strings.TrimSpace(s) == "" {
		return core.Money{}, usageErr("--amount is required")
	}
	m, err := core.ParseAmount(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return m, nil
}

func parseFrequency(s string) (core.Frequency, error) {
	f := core.Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", usageErr("invalid frequency %q: use daily, weekly or monthly", s)
	}
	return f, nil
}

// parseToggle reads on/off style switches. Empty input leaves the value
// unset.
func parseToggle(name, s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "on", "true", "yes", "1":
		v := true
		return &v, nil
	case "off", "false", "no", "0":
		v := false
		return &v, nil
	}
	return nil, usageErr("--%s must be on or off, got %q", name, s)
}
