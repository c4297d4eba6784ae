package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/storage"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrBudgetExists is returned by SetBudget when the category already has
	// an allocation and overwrite was not requested.
	ErrBudgetExists = errors.New("a budget for this category already exists")
)

// LedgerService applies user-initiated writes. Every write runs through
// Orchestrator.Edit, so it never interleaves with a reconciliation cycle and
// triggers one once persisted.
type LedgerService struct {
	orch   *Orchestrator
	now    func() time.Time
	logger *log.StructuredLogger
}

func NewLedgerService(orch *Orchestrator, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		orch:   orch,
		now:    orch.now,
		logger: log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
	}
}

// ExpenseInput holds the user-editable fields of an expense. A zero Date
// means now.
type ExpenseInput struct {
	Amount      core.Money
	Category    string
	Description string
	Date        time.Time
}

// IncomeInput holds the user-editable fields of an income. A zero Date
// means now.
type IncomeInput struct {
	Amount      core.Money
	Description string
	Note        string
	Date        time.Time
}

// RecurringInput describes a new recurring rule.
type RecurringInput struct {
	Amount      core.Money
	Description string
	Category    string
	Frequency   core.Frequency
	DayOfMonth  *int
}

// ShortcutInput holds the fields of a quick-add shortcut.
type ShortcutInput struct {
	Amount      core.Money
	Description string
	Category    string
}

// AddExpense records a new expense, newest first.
func (s *LedgerService) AddExpense(ctx context.Context, in ExpenseInput) (core.Transaction, error) {
	now := s.now()
	tx := core.Transaction{
		ID:          core.NewID(),
		Amount:      in.Amount,
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
		Date:        dateOr(in.Date, now),
		CreatedAt:   now,
	}
	if err := tx.ValidateExpense(); err != nil {
		return core.Transaction{}, fmt.Errorf("add expense: %w", err)
	}
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.Expenses(ctx)
		if err != nil {
			return err
		}
		return l.SaveExpenses(ctx, prepend(all, tx))
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add expense: %w", err)
	}
	s.logger.LogTransaction(ctx, log.OpCreate, "expense", tx)
	return tx, nil
}

// UpdateExpense replaces the editable fields of the expense with id.
func (s *LedgerService) UpdateExpense(ctx context.Context, id string, in ExpenseInput) (core.Transaction, error) {
	var updated core.Transaction
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.Expenses(ctx)
		if err != nil {
			return err
		}
		i := indexOf(all, id)
		if i < 0 {
			return ErrNotFound
		}
		tx := all[i]
		tx.Amount = in.Amount
		tx.Category = strings.TrimSpace(in.Category)
		tx.Description = strings.TrimSpace(in.Description)
		tx.Date = dateOr(in.Date, tx.Date)
		if err := tx.ValidateExpense(); err != nil {
			return err
		}
		all[i] = tx
		updated = tx
		return l.SaveExpenses(ctx, all)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update expense %s: %w", id, err)
	}
	s.logger.LogTransaction(ctx, log.OpUpdate, "expense", updated)
	return updated, nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id string) error {
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.Expenses(ctx)
		if err != nil {
			return err
		}
		rest, ok := remove(all, id)
		if !ok {
			return ErrNotFound
		}
		return l.SaveExpenses(ctx, rest)
	})
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	return nil
}

// AddIncome records a new income, newest first.
func (s *LedgerService) AddIncome(ctx context.Context, in IncomeInput) (core.Transaction, error) {
	now := s.now()
	tx := core.Transaction{
		ID:          core.NewID(),
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Note:        strings.TrimSpace(in.Note),
		Date:        dateOr(in.Date, now),
		CreatedAt:   now,
	}
	if err := tx.ValidateIncome(); err != nil {
		return core.Transaction{}, fmt.Errorf("add income: %w", err)
	}
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.Incomes(ctx)
		if err != nil {
			return err
		}
		return l.SaveIncomes(ctx, prepend(all, tx))
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add income: %w", err)
	}
	s.logger.LogTransaction(ctx, log.OpCreate, "income", tx)
	return tx, nil
}

func (s *LedgerService) UpdateIncome(ctx context.Context, id string, in IncomeInput) (core.Transaction, error) {
	var updated core.Transaction
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.Incomes(ctx)
		if err != nil {
			return err
		}
		i := indexOf(all, id)
		if i < 0 {
			return ErrNotFound
		}
		tx := all[i]
		tx.Amount = in.Amount
		tx.Description = strings.TrimSpace(in.Description)
		tx.Note = strings.TrimSpace(in.Note)
		tx.Date = dateOr(in.Date, tx.Date)
		if err := tx.ValidateIncome(); err != nil {
			return err
		}
		all[i] = tx
		updated = tx
		return l.SaveIncomes(ctx, all)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update income %s: %w", id, err)
	}
	s.logger.LogTransaction(ctx, log.OpUpdate, "income", updated)
	return updated, nil
}

func (s *LedgerService) DeleteIncome(ctx context.Context, id string) error {
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.Incomes(ctx)
		if err != nil {
			return err
		}
		rest, ok := remove(all, id)
		if !ok {
			return ErrNotFound
		}
		return l.SaveIncomes(ctx, rest)
	})
	if err != nil {
		return fmt.Errorf("delete income %s: %w", id, err)
	}
	return nil
}

// SetBudget creates an allocation for category in the current month. When
// the category already has one, it returns ErrBudgetExists unless overwrite
// is set, in which case only the amount changes.
func (s *LedgerService) SetBudget(ctx context.Context, category string, amount core.Money, overwrite bool) (core.Budget, error) {
	category = strings.TrimSpace(category)
	p := core.PeriodOf(s.now(), s.orch.loc)
	var out core.Budget
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.Budgets(ctx)
		if err != nil {
			return err
		}
		for i, b := range all {
			if b.Category != category {
				continue
			}
			if !overwrite {
				return ErrBudgetExists
			}
			b.Amount = amount
			if err := b.Validate(); err != nil {
				return err
			}
			all[i] = b
			out = b
			return l.SaveBudgets(ctx, all)
		}
		b := core.Budget{
			ID:       core.NewID(),
			Category: category,
			Amount:   amount,
			Spent:    core.Zero,
			Month:    p.Month,
			Year:     p.Year,
			History:  []core.HistoryEntry{},
		}
		if err := b.Validate(); err != nil {
			return err
		}
		out = b
		return l.SaveBudgets(ctx, append([]core.Budget{b}, all...))
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("set budget %s: %w", category, err)
	}
	return out, nil
}

func (s *LedgerService) DeleteBudget(ctx context.Context, id string) error {
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.Budgets(ctx)
		if err != nil {
			return err
		}
		rest, ok := remove(all, id)
		if !ok {
			return ErrNotFound
		}
		return l.SaveBudgets(ctx, rest)
	})
	if err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	return nil
}

// AddRecurring creates a rule whose first due date follows now.
func (s *LedgerService) AddRecurring(ctx context.Context, in RecurringInput) (core.RecurringRule, error) {
	now := s.now()
	var day *int
	if in.Frequency == core.Monthly && in.DayOfMonth != nil {
		day = core.IntPtr(*in.DayOfMonth)
	}
	next, err := NextDueDate(in.Frequency, now.In(s.orch.Location()), day)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("add recurring: %w", err)
	}
	r := core.RecurringRule{
		ID:          core.NewID(),
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Frequency:   in.Frequency,
		DayOfMonth:  day,
		NextDue:     next,
		CreatedAt:   now,
	}
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, fmt.Errorf("add recurring: %w", err)
	}
	err = s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.RecurringRules(ctx)
		if err != nil {
			return err
		}
		return l.SaveRecurringRules(ctx, append(all, r))
	})
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("add recurring: %w", err)
	}
	return r, nil
}

func (s *LedgerService) DeleteRecurring(ctx context.Context, id string) error {
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.RecurringRules(ctx)
		if err != nil {
			return err
		}
		rest, ok := remove(all, id)
		if !ok {
			return ErrNotFound
		}
		return l.SaveRecurringRules(ctx, rest)
	})
	if err != nil {
		return fmt.Errorf("delete recurring %s: %w", id, err)
	}
	return nil
}

// UpdateSettings applies fn to the stored notification settings.
func (s *LedgerService) UpdateSettings(ctx context.Context, fn func(*core.NotificationSettings)) (core.NotificationSettings, error) {
	var out core.NotificationSettings
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		cur, err := l.Settings(ctx)
		if err != nil {
			return err
		}
		fn(&cur)
		out = cur
		return l.SaveSettings(ctx, cur)
	})
	if err != nil {
		return core.NotificationSettings{}, fmt.Errorf("update settings: %w", err)
	}
	return out, nil
}

// AddShortcut saves a new quick-add shortcut after the existing ones.
func (s *LedgerService) AddShortcut(ctx context.Context, in ShortcutInput) (core.Shortcut, error) {
	sc := core.Shortcut{
		ID:          core.NewID(),
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
	}
	if err := sc.Validate(); err != nil {
		return core.Shortcut{}, fmt.Errorf("add shortcut: %w", err)
	}
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.Shortcuts(ctx)
		if err != nil {
			return err
		}
		return l.SaveShortcuts(ctx, append(all, sc))
	})
	if err != nil {
		return core.Shortcut{}, fmt.Errorf("add shortcut: %w", err)
	}
	return sc, nil
}

// UpdateShortcut replaces the template fields of a shortcut. Its usage count
// is kept.
func (s *LedgerService) UpdateShortcut(ctx context.Context, id string, in ShortcutInput) (core.Shortcut, error) {
	var updated core.Shortcut
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.Shortcuts(ctx)
		if err != nil {
			return err
		}
		i := indexOf(all, id)
		if i < 0 {
			return ErrNotFound
		}
		sc := all[i]
		sc.Amount = in.Amount
		sc.Description = strings.TrimSpace(in.Description)
		sc.Category = strings.TrimSpace(in.Category)
		if err := sc.Validate(); err != nil {
			return err
		}
		all[i] = sc
		updated = sc
		return l.SaveShortcuts(ctx, all)
	})
	if err != nil {
		return core.Shortcut{}, fmt.Errorf("update shortcut %s: %w", id, err)
	}
	return updated, nil
}

func (s *LedgerService) DeleteShortcut(ctx context.Context, id string) error {
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		all, err := l.Shortcuts(ctx)
		if err != nil {
			return err
		}
		rest, ok := remove(all, id)
		if !ok {
			return ErrNotFound
		}
		return l.SaveShortcuts(ctx, rest)
	})
	if err != nil {
		return fmt.Errorf("delete shortcut %s: %w", id, err)
	}
	return nil
}

// QuickAdd records an expense dated now from the shortcut with id and bumps
// the shortcut's usage count. Both collections are committed together.
func (s *LedgerService) QuickAdd(ctx context.Context, id string) (core.Transaction, error) {
	now := s.now()
	var tx core.Transaction
	err := s.orch.Edit(ctx, func(ctx context.Context, l *storage.Ledger) error {
		shortcuts, err := l.Shortcuts(ctx)
		if err != nil {
			return err
		}
		i := indexOf(shortcuts, id)
		if i < 0 {
			return ErrNotFound
		}
		expenses, err := l.Expenses(ctx)
		if err != nil {
			return err
		}

		sc := shortcuts[i]
		tx = core.Transaction{
			ID:          core.NewID(),
			Amount:      sc.Amount,
			Category:    sc.Category,
			Description: sc.Description,
			Date:        now,
			CreatedAt:   now,
		}
		shortcuts[i].UsageCount++

		cs := storage.NewChangeset()
		if err := cs.PutExpenses(prepend(expenses, tx)); err != nil {
			return err
		}
		if err := cs.PutShortcuts(shortcuts); err != nil {
			return err
		}
		return l.Commit(ctx, cs)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("quick add %s: %w", id, err)
	}
	s.logger.LogTransaction(ctx, log.OpCreate, "expense", tx)
	return tx, nil
}

type identified interface {
	core.Transaction | core.Budget | core.RecurringRule | core.Shortcut
}

func idOf[T identified](v T) string {
	switch x := any(v).(type) {
	case core.Transaction:
		return x.ID
	case core.Budget:
		return x.ID
	case core.RecurringRule:
		return x.ID
	case core.Shortcut:
		return x.ID
	}
	return ""
}

func indexOf[T identified](items []T, id string) int {
	for i, v := range items {
		if idOf(v) == id {
			return i
		}
	}
	return -1
}

func remove[T identified](items []T, id string) ([]T, bool) {
	i := indexOf(items, id)
	if i < 0 {
		return items, false
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...), true
}

func prepend[T any](items []T, v T) []T {
	return append([]T{v}, items...)
}

func dateOr(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
