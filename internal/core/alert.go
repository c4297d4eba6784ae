package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

type AlertKind string

const (
	AlertBudgetThreshold AlertKind = "budget_threshold"
	AlertBudgetWarning   AlertKind = "budget_warning"
	AlertRecurringDue    AlertKind = "recurring_due"
	AlertDailyReminder   AlertKind = "daily_reminder"
)

var ErrInvalidAlertKind = errors.New("invalid alert kind")

func (k AlertKind) Valid() bool {
	switch k {
	case AlertBudgetThreshold, AlertBudgetWarning, AlertRecurringDue, AlertDailyReminder:
		return true
	}
	return false
}

// AlertEvent is handed to the notification collaborator. Delivery is
// fire-and-forget.
type AlertEvent struct {
	Kind     AlertKind    `json:"kind"`
	Payload  AlertPayload `json:"payload"`
	RaisedAt time.Time    `json:"raisedAt"`
}

type AlertPayload struct {
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	BudgetID     string     `json:"budgetId,omitempty"`
	RuleID       string     `json:"ruleId,omitempty"`
	Category     string     `json:"category,omitempty"`
	Percent      int        `json:"percent,omitempty"`
	Amount       *Money     `json:"amount,omitempty"`
	Spent        *Money     `json:"spent,omitempty"`
	Remaining    *Money     `json:"remaining,omitempty"`
	DueAt        *time.Time `json:"dueAt,omitempty"`
	DaysUntilDue *int       `json:"daysUntilDue,omitempty"`
}

const defaultReminderTime = "20:00"

// NotificationSettings are the user's alert preferences.
type NotificationSettings struct {
	Enabled          bool   `json:"enabled"` // daily reminder
	ReminderTime     string `json:"reminderTime"`
	BudgetAlerts     bool   `json:"budgetAlerts"`
	RecurringAlerts  bool   `json:"recurringAlerts"`
	LastReminderDate string `json:"lastReminderDate,omitempty"` // YYYY-MM-DD
}

// DefaultNotificationSettings returns the settings used when none are stored.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		ReminderTime:    defaultReminderTime,
		BudgetAlerts:    true,
		RecurringAlerts: true,
	}
}

// UnmarshalJSON fills fields missing from data with their defaults.
func (s *NotificationSettings) UnmarshalJSON(data []byte) error {
	type plain NotificationSettings
	p := plain(DefaultNotificationSettings())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = NotificationSettings(p)
	return nil
}

func (s NotificationSettings) Validate() error {
	if _, _, err := s.ReminderClock(); err != nil {
		return err
	}
	if s.LastReminderDate != "" {
		if _, err := time.Parse(time.DateOnly, s.LastReminderDate); err != nil {
			return fmt.Errorf("last reminder date: %w", ErrInvalidDate)
		}
	}
	return nil
}

// ReminderClock parses ReminderTime ("HH:MM").
func (s NotificationSettings) ReminderClock() (hour, minute int, err error) {
	rt := s.ReminderTime
	if rt == "" {
		rt = defaultReminderTime
	}
	hh, mm, ok := strings.Cut(rt, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid reminder time %q", s.ReminderTime)
	}
	hour, err1 := strconv.Atoi(hh)
	minute, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid reminder time %q", s.ReminderTime)
	}
	return hour, minute, nil
}
