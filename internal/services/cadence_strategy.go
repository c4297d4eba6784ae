// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring rule cadences.
// Each frequency (daily, weekly, monthly) has its own strategy that computes
// the next due date from an anchor instant.

package services

import (
	"fmt"
	"time"

	"tally/internal/core"
)

// CadenceStrategy computes the next due date for one frequency.
type CadenceStrategy interface {
	// Next returns the due date following anchor. day is the configured
	// day of month and is only meaningful for monthly cadences.
	Next(anchor time.Time, day int) time.Time
}

// DailyCadence advances by one calendar day.
type DailyCadence struct{}

func (DailyCadence) Next(anchor time.Time, _ int) time.Time {
	return anchor.AddDate(0, 0, 1)
}

// WeeklyCadence advances by seven calendar days.
type WeeklyCadence struct{}

func (WeeklyCadence) Next(anchor time.Time, _ int) time.Time {
	return anchor.AddDate(0, 0, 7)
}

// MonthlyCadence lands on day of the month after the anchor's month, at
// midnight in the anchor's location. Days past the end of that month clamp
// to its last day, so 31 in February gives the 28th or 29th.
type MonthlyCadence struct{}

func (MonthlyCadence) Next(anchor time.Time, day int) time.Time {
	if day < 1 {
		day = 1
	}
	// Day 1 never overflows, so AddDate cannot skip a month here.
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location()).AddDate(0, 1, 0)
	if last := core.DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, anchor.Location())
}

// cadenceStrategies maps frequencies to their strategies.
var cadenceStrategies = map[core.Frequency]CadenceStrategy{
	core.Daily:   DailyCadence{},
	core.Weekly:  WeeklyCadence{},
	core.Monthly: MonthlyCadence{},
}

// GetCadenceStrategy returns the strategy for a frequency.
func GetCadenceStrategy(frequency core.Frequency) (CadenceStrategy, error) {
	s, ok := cadenceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return s, nil
}

// NextDueDate computes the due date following anchor for the given
// frequency. dayOfMonth is ignored for daily and weekly rules and defaults
// to 1 for monthly ones.
func NextDueDate(frequency core.Frequency, anchor time.Time, dayOfMonth *int) (time.Time, error) {
	s, err := GetCadenceStrategy(frequency)
	if err != nil {
		return time.Time{}, err
	}
	day := 1
	if dayOfMonth != nil {
		day = *dayOfMonth
	}
	return s.Next(anchor, day), nil
}
