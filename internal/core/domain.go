package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

const maxDescriptionLen = 200

type (
	Frequency string

	// Transaction is an expense or an income record.
	Transaction struct {
		ID          string    `json:"id"`
		Amount      Money     `json:"amount"`
		Category    string    `json:"category,omitempty"` // expenses only
		Description string    `json:"description"`
		Note        string    `json:"note,omitempty"` // incomes only
		Date        time.Time `json:"date"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// Budget is a monthly spending cap for one category.
	Budget struct {
		ID         string         `json:"id"`
		Category   string         `json:"category"`
		Amount     Money          `json:"amount"`
		Spent      Money          `json:"spent"`
		Month      int            `json:"month"` // 0-11
		Year       int            `json:"year"`
		AlertShown bool           `json:"alertShown"`
		History    []HistoryEntry `json:"history"`
	}

	// HistoryEntry is the snapshot of a budget month archived on rollover.
	HistoryEntry struct {
		Month  int   `json:"month"`
		Year   int   `json:"year"`
		Amount Money `json:"amount"`
		Spent  Money `json:"spent"`
	}

	RecurringRule struct {
		ID          string    `json:"id"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Frequency   Frequency `json:"frequency"`
		DayOfMonth  *int      `json:"dayOfMonth"` // monthly only
		NextDue     time.Time `json:"nextDue"`
		Notified    bool      `json:"notified"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// Shortcut is a saved expense template for one-step entry.
	Shortcut struct {
		ID          string `json:"id"`
		Amount      Money  `json:"amount"`
		Description string `json:"description"`
		Category    string `json:"category"`
		UsageCount  int    `json:"usageCount"`
	}

	// Rollover records one budget month transition.
	Rollover struct {
		BudgetID string
		Category string
		Entry    HistoryEntry
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidDay       = errors.New("invalid day of month")
	ErrEmptyID          = errors.New("empty id")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidUsage     = errors.New("invalid usage count")
	ErrDescriptionLong  = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
)

// NewID returns a time-ordered unique record identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// IntPtr is a helper for optional integer fields such as DayOfMonth.
func IntPtr(v int) *int {
	return &v
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

func validateDescription(d string) error {
	if strings.TrimSpace(d) == "" {
		return ErrEmptyDescription
	}
	if len(d) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}

func validateAmount(m Money) error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) validateCommon() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if err := validateAmount(t.Amount); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return validateDescription(t.Description)
}

// ValidateExpense checks the fields an expense record requires.
func (t Transaction) ValidateExpense() error {
	if err := t.validateCommon(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// ValidateIncome checks the fields an income record requires.
func (t Transaction) ValidateIncome() error {
	return t.validateCommon()
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := validateAmount(b.Amount); err != nil {
		return err
	}
	if b.Spent.IsNegative() {
		return ErrInvalidAmount
	}
	if b.Month < 0 || b.Month > 11 {
		return ErrInvalidMonth
	}
	for _, h := range b.History {
		if h.Month < 0 || h.Month > 11 {
			return fmt.Errorf("history %d/%d: %w", h.Month, h.Year, ErrInvalidMonth)
		}
	}
	return nil
}

func (s Shortcut) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrEmptyID
	}
	if err := validateAmount(s.Amount); err != nil {
		return err
	}
	if err := validateDescription(s.Description); err != nil {
		return err
	}
	if strings.TrimSpace(s.Category) == "" {
		return ErrEmptyCategory
	}
	if s.UsageCount < 0 {
		return ErrInvalidUsage
	}
	return nil
}

// Period returns the month the allocation is currently active for.
func (b Budget) Period() Period {
	return Period{Year: b.Year, Month: b.Month}
}

// Clone returns a copy that shares no memory with b.
func (b Budget) Clone() Budget {
	c := b
	if b.History != nil {
		c.History = append([]HistoryEntry(nil), b.History...)
	}
	return c
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if err := validateAmount(r.Amount); err != nil {
		return err
	}
	if err := validateDescription(r.Description); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}
	if r.DayOfMonth != nil {
		if r.Frequency != Monthly {
			return fmt.Errorf("%w: only monthly rules take a day", ErrInvalidDay)
		}
		if *r.DayOfMonth < 1 || *r.DayOfMonth > 31 {
			return ErrInvalidDay
		}
	}
	if r.NextDue.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the configured day of month, defaulting to 1.
func (r RecurringRule) Day() int {
	if r.DayOfMonth == nil {
		return 1
	}
	return *r.DayOfMonth
}

// Clone returns a copy that shares no memory with r.
func (r RecurringRule) Clone() RecurringRule {
	c := r
	if r.DayOfMonth != nil {
		c.DayOfMonth = IntPtr(*r.DayOfMonth)
	}
	return c
}
