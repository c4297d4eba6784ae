package services

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

var (
	// ThresholdRatio is the utilization that raises the once-per-month alert.
	ThresholdRatio = decimal.RequireFromString("0.90")
	// WarningRatio is the utilization that raises the advisory warning.
	WarningRatio = decimal.RequireFromString("0.75")
)

// AlertEngine derives notifications from reconciled budgets and rules.
type AlertEngine struct {
	Location *time.Location
	Settings core.NotificationSettings
}

// Evaluation holds the events raised and the collections with their alert
// flags updated.
type Evaluation struct {
	Events  []core.AlertEvent
	Budgets []core.Budget
	Rules   []core.RecurringRule
}

// Evaluate checks budget utilization and upcoming recurring rules. Threshold
// and recurring-due alerts fire at most once per crossing, guarded by
// alertShown and notified. Warnings carry no flag and repeat on every call
// while utilization stays in the warning band.
func (e AlertEngine) Evaluate(budgets []core.Budget, rules []core.RecurringRule, now time.Time) Evaluation {
	ev := Evaluation{
		Budgets: make([]core.Budget, 0, len(budgets)),
		Rules:   make([]core.RecurringRule, 0, len(rules)),
	}
	active := core.PeriodOf(now, e.Location)

	for _, b := range budgets {
		b = b.Clone()
		if e.Settings.BudgetAlerts && b.Period() == active {
			ratio := b.Spent.Ratio(b.Amount)
			switch {
			case ratio.GreaterThanOrEqual(ThresholdRatio):
				if !b.AlertShown {
					b.AlertShown = true
					ev.Events = append(ev.Events, stamp(thresholdEvent(b), now))
				}
			case ratio.GreaterThanOrEqual(WarningRatio):
				ev.Events = append(ev.Events, stamp(warningEvent(b), now))
			}
		}
		ev.Budgets = append(ev.Budgets, b)
	}

	for _, r := range rules {
		r = r.Clone()
		if e.Settings.RecurringAlerts && !r.Notified {
			if days := DaysUntil(r.NextDue, now); days <= 1 {
				r.Notified = true
				ev.Events = append(ev.Events, stamp(recurringDueEvent(r, days), now))
			}
		}
		ev.Rules = append(ev.Rules, r)
	}
	return ev
}

// Reminder returns a daily_reminder event when reminders are enabled, the
// reminder time has passed today, no expense was recorded today and no
// reminder was sent yet today. The returned settings carry the updated
// LastReminderDate; changed reports whether they differ from the input.
func (e AlertEngine) Reminder(settings core.NotificationSettings, expenses []core.Transaction, now time.Time) (ev *core.AlertEvent, updated core.NotificationSettings, changed bool) {
	updated = settings
	if !settings.Enabled {
		return nil, updated, false
	}
	hour, minute, err := settings.ReminderClock()
	if err != nil {
		return nil, updated, false
	}

	local := now.In(location(e.Location))
	today := local.Format(time.DateOnly)
	if settings.LastReminderDate == today {
		return nil, updated, false
	}
	due := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())
	if local.Before(due) {
		return nil, updated, false
	}
	for _, x := range expenses {
		if core.SameDay(x.Date, now, e.Location) {
			return nil, updated, false
		}
	}

	updated.LastReminderDate = today
	event := stamp(core.AlertEvent{
		Kind: core.AlertDailyReminder,
		Payload: core.AlertPayload{
			Title:   "Daily Expense Reminder",
			Message: "Don't forget to record your expenses for today!",
		},
	}, now)
	return &event, updated, true
}

// DaysUntil returns the whole days from now until due, rounded up. Past due
// dates give zero or negative values.
func DaysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

func stamp(ev core.AlertEvent, now time.Time) core.AlertEvent {
	ev.RaisedAt = now
	return ev
}

func warningEvent(b core.Budget) core.AlertEvent {
	pct := percent(b.Spent, b.Amount)
	spent, amount := b.Spent, b.Amount
	remaining := amount.Sub(spent)
	return core.AlertEvent{
		Kind: core.AlertBudgetWarning,
		Payload: core.AlertPayload{
			Title:     "Budget Warning",
			Message:   fmt.Sprintf("You've used %d%% of your %s budget.", pct, b.Category),
			BudgetID:  b.ID,
			Category:  b.Category,
			Percent:   pct,
			Amount:    &amount,
			Spent:     &spent,
			Remaining: &remaining,
		},
	}
}

func recurringDueEvent(r core.RecurringRule, days int) core.AlertEvent {
	when := "tomorrow"
	if days <= 0 {
		when = "today"
	}
	amount, due := r.Amount, r.NextDue
	return core.AlertEvent{
		Kind: core.AlertRecurringDue,
		Payload: core.AlertPayload{
			Title:        "Recurring Transaction Due",
			Message:      fmt.Sprintf("%s (%s) is due %s!", r.Description, r.Amount.String(), when),
			RuleID:       r.ID,
			Category:     r.Category,
			Amount:       &amount,
			DueAt:        &due,
			DaysUntilDue: &days,
		},
	}
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
