package services

import (
	"testing"
	"time"

	"tally/internal/core"
)

func monthlyRent() core.RecurringRule {
	return core.RecurringRule{
		ID:          "r1",
		Amount:      core.NewMoney(500000),
		Description: "Rent",
		Category:    "Housing",
		Frequency:   core.Monthly,
		DayOfMonth:  core.IntPtr(1),
		NextDue:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Notified:    true,
	}
}

func TestTickMaterializesDueMonthlyRule(t *testing.T) {
	now := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	s := RecurringScheduler{NewID: func() string { return "x1" }}

	res := s.Tick([]core.RecurringRule{monthlyRent()}, now)

	if len(res.Due) != 1 || res.Due[0] != "r1" {
		t.Fatalf("Due = %v, want [r1]", res.Due)
	}
	if len(res.Materialized) != 1 {
		t.Fatalf("Materialized = %d, want 1", len(res.Materialized))
	}
	e := res.Materialized[0]
	if e.ID != "x1" || !e.Date.Equal(now) || e.Category != "Housing" || e.Description != "Rent" || !e.Amount.Equal(core.NewMoney(500000)) {
		t.Errorf("materialized expense = %+v", e)
	}
	if err := e.ValidateExpense(); err != nil {
		t.Errorf("materialized expense invalid: %v", err)
	}
	r := res.Rules[0]
	if want := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC); !r.NextDue.Equal(want) {
		t.Errorf("NextDue = %v, want %v", r.NextDue, want)
	}
	if r.Notified {
		t.Errorf("Notified not reset")
	}
}

func TestTick(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		rule     core.RecurringRule
		wantDue  bool
		wantNext time.Time
	}{
		{
			name:     "due exactly now",
			rule:     core.RecurringRule{ID: "d", Frequency: core.Daily, NextDue: now},
			wantDue:  true,
			wantNext: now.AddDate(0, 0, 1),
		},
		{
			name:     "not yet due",
			rule:     core.RecurringRule{ID: "w", Frequency: core.Weekly, NextDue: now.Add(time.Minute)},
			wantDue:  false,
			wantNext: now.Add(time.Minute),
		},
		{
			name:     "overdue weekly advances from now",
			rule:     core.RecurringRule{ID: "w", Frequency: core.Weekly, NextDue: now.AddDate(0, 0, -20)},
			wantDue:  true,
			wantNext: now.AddDate(0, 0, 7),
		},
		{
			name:     "unknown frequency is skipped",
			rule:     core.RecurringRule{ID: "y", Frequency: "yearly", NextDue: now.AddDate(0, 0, -1)},
			wantDue:  false,
			wantNext: now.AddDate(0, 0, -1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rule.Amount = core.NewMoney(10)
			tt.rule.Description = "rule"
			tt.rule.Category = "Misc"

			res := RecurringScheduler{}.Tick([]core.RecurringRule{tt.rule}, now)
			if got := len(res.Due) == 1; got != tt.wantDue {
				t.Errorf("due = %v, want %v", got, tt.wantDue)
			}
			if got := len(res.Materialized); got != len(res.Due) {
				t.Errorf("materialized %d for %d due rules", got, len(res.Due))
			}
			if len(res.Rules) != 1 {
				t.Fatalf("rules dropped by tick")
			}
			if !res.Rules[0].NextDue.Equal(tt.wantNext) {
				t.Errorf("NextDue = %v, want %v", res.Rules[0].NextDue, tt.wantNext)
			}
		})
	}
}

func TestTickDoesNotMutateInput(t *testing.T) {
	rules := []core.RecurringRule{monthlyRent()}
	RecurringScheduler{}.Tick(rules, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	if !rules[0].NextDue.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) || !rules[0].Notified {
		t.Errorf("input rule mutated: %+v", rules[0])
	}
}
