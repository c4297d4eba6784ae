package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/storage"
)

func newLedgerService(t *testing.T, now time.Time) (*LedgerService, *storage.Ledger) {
	t.Helper()
	f := newFixture(t, storage.NewMemoryStore(), now)
	return NewLedgerService(f.orch, quietLogger()), f.ledger
}

func TestLedgerServiceExpenseLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newLedgerService(t, june10)

	first, err := svc.AddExpense(ctx, ExpenseInput{Amount: core.NewMoney(10), Category: "Food", Description: "lunch"})
	if err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}
	if !first.Date.Equal(june10) || first.ID == "" {
		t.Errorf("AddExpense() = %+v, want dated now with an id", first)
	}
	second, _ := svc.AddExpense(ctx, ExpenseInput{Amount: core.NewMoney(20), Category: "Transport", Description: "bus"})

	all, _ := ledger.Expenses(ctx)
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("expenses = %+v, want newest first", all)
	}

	updated, err := svc.UpdateExpense(ctx, first.ID, ExpenseInput{Amount: core.NewMoney(15), Category: "Food", Description: "dinner"})
	if err != nil {
		t.Fatalf("UpdateExpense() error = %v", err)
	}
	if !updated.Amount.Equal(core.NewMoney(15)) || !updated.Date.Equal(first.Date) || !updated.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("UpdateExpense() = %+v", updated)
	}

	if err := svc.DeleteExpense(ctx, second.ID); err != nil {
		t.Fatalf("DeleteExpense() error = %v", err)
	}
	if err := svc.DeleteExpense(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteExpense() error = %v, want ErrNotFound", err)
	}
	all, _ = ledger.Expenses(ctx)
	if len(all) != 1 || all[0].Description != "dinner" {
		t.Errorf("expenses = %+v", all)
	}
}

func TestLedgerServiceRejectsInvalidExpense(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newLedgerService(t, june10)

	tests := []struct {
		name string
		in   ExpenseInput
		want error
	}{
		{"zero amount", ExpenseInput{Amount: core.Zero, Category: "Food", Description: "x"}, core.ErrInvalidAmount},
		{"no category", ExpenseInput{Amount: core.NewMoney(1), Description: "x"}, core.ErrEmptyCategory},
		{"blank description", ExpenseInput{Amount: core.NewMoney(1), Category: "Food", Description: "  "}, core.ErrEmptyDescription},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AddExpense(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("AddExpense() error = %v, want %v", err, tt.want)
			}
		})
	}
	if all, _ := ledger.Expenses(ctx); len(all) != 0 {
		t.Errorf("invalid expenses stored: %+v", all)
	}
}

func TestLedgerServiceIncomeLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newLedgerService(t, june10)

	in, err := svc.AddIncome(ctx, IncomeInput{Amount: core.NewMoney(1000), Description: "salary", Note: "june"})
	if err != nil {
		t.Fatalf("AddIncome() error = %v", err)
	}
	if _, err := svc.UpdateIncome(ctx, in.ID, IncomeInput{Amount: core.NewMoney(1200), Description: "salary"}); err != nil {
		t.Fatalf("UpdateIncome() error = %v", err)
	}
	all, _ := ledger.Incomes(ctx)
	if len(all) != 1 || !all[0].Amount.Equal(core.NewMoney(1200)) || all[0].Note != "" {
		t.Errorf("incomes = %+v", all)
	}
	if _, err := svc.UpdateIncome(ctx, "missing", IncomeInput{Amount: core.NewMoney(1), Description: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateIncome(missing) error = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteIncome(ctx, in.ID); err != nil {
		t.Fatalf("DeleteIncome() error = %v", err)
	}
}

func TestSetBudgetOverwriteRule(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newLedgerService(t, june10)

	b, err := svc.SetBudget(ctx, "Food", core.NewMoney(100000), false)
	if err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	if b.Month != 5 || b.Year != 2024 || !b.Spent.IsZero() {
		t.Errorf("SetBudget() = %+v, want June 2024 with nothing spent", b)
	}

	if _, err := svc.SetBudget(ctx, "Food", core.NewMoney(50000), false); !errors.Is(err, ErrBudgetExists) {
		t.Fatalf("SetBudget() without overwrite error = %v, want ErrBudgetExists", err)
	}

	got, err := svc.SetBudget(ctx, "Food", core.NewMoney(50000), true)
	if err != nil {
		t.Fatalf("SetBudget() overwrite error = %v", err)
	}
	if got.ID != b.ID || !got.Amount.Equal(core.NewMoney(50000)) {
		t.Errorf("overwrite = %+v, want same id with amount 50000", got)
	}
	all, _ := ledger.Budgets(ctx)
	if len(all) != 1 {
		t.Errorf("budgets = %d, want 1", len(all))
	}

	if err := svc.DeleteBudget(ctx, b.ID); err != nil {
		t.Fatalf("DeleteBudget() error = %v", err)
	}
}

func TestAddRecurringComputesFirstDueDate(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newLedgerService(t, time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC))

	r, err := svc.AddRecurring(ctx, RecurringInput{
		Amount:      core.NewMoney(300),
		Description: "Gym",
		Category:    "Health",
		Frequency:   core.Monthly,
		DayOfMonth:  core.IntPtr(31),
	})
	if err != nil {
		t.Fatalf("AddRecurring() error = %v", err)
	}
	if want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC); !r.NextDue.Equal(want) {
		t.Errorf("NextDue = %v, want %v", r.NextDue, want)
	}

	weekly, err := svc.AddRecurring(ctx, RecurringInput{
		Amount: core.NewMoney(5), Description: "Paper", Category: "News", Frequency: core.Weekly, DayOfMonth: core.IntPtr(3),
	})
	if err != nil {
		t.Fatalf("AddRecurring(weekly) error = %v", err)
	}
	if weekly.DayOfMonth != nil {
		t.Errorf("weekly rule kept a day of month")
	}

	if _, err := svc.AddRecurring(ctx, RecurringInput{Amount: core.NewMoney(5), Description: "x", Category: "y", Frequency: "yearly"}); !errors.Is(err, core.ErrInvalidFrequency) {
		t.Errorf("AddRecurring(yearly) error = %v, want ErrInvalidFrequency", err)
	}

	rules, _ := ledger.RecurringRules(ctx)
	if len(rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(rules))
	}
	if err := svc.DeleteRecurring(ctx, r.ID); err != nil {
		t.Fatalf("DeleteRecurring() error = %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newLedgerService(t, june10)

	_, err := svc.UpdateSettings(ctx, func(s *core.NotificationSettings) {
		s.Enabled = true
		s.ReminderTime = "21:30"
	})
	if err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	s, _ := ledger.Settings(ctx)
	if !s.Enabled || s.ReminderTime != "21:30" || !s.BudgetAlerts {
		t.Errorf("Settings() = %+v", s)
	}

	_, err = svc.UpdateSettings(ctx, func(s *core.NotificationSettings) { s.ReminderTime = "25:00" })
	if !storage.IsValidation(err) {
		t.Errorf("UpdateSettings(25:00) error = %v, want validation error", err)
	}
}

func TestQuickAddRecordsExpenseAndCountsUse(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newLedgerService(t, june10)

	sc, err := svc.AddShortcut(ctx, ShortcutInput{Amount: core.NewMoney(3500), Description: " coffee ", Category: "Food"})
	if err != nil {
		t.Fatalf("AddShortcut() error = %v", err)
	}
	if sc.Description != "coffee" || sc.UsageCount != 0 {
		t.Errorf("AddShortcut() = %+v", sc)
	}

	for i := 0; i < 2; i++ {
		tx, err := svc.QuickAdd(ctx, sc.ID)
		if err != nil {
			t.Fatalf("QuickAdd() error = %v", err)
		}
		if !tx.Amount.Equal(sc.Amount) || tx.Category != "Food" || !tx.Date.Equal(june10) {
			t.Errorf("QuickAdd() = %+v", tx)
		}
	}

	expenses, _ := ledger.Expenses(ctx)
	if len(expenses) != 2 {
		t.Fatalf("expenses = %d, want 2", len(expenses))
	}
	shortcuts, _ := ledger.Shortcuts(ctx)
	if len(shortcuts) != 1 || shortcuts[0].UsageCount != 2 {
		t.Errorf("shortcuts = %+v, want usage 2", shortcuts)
	}

	if _, err := svc.QuickAdd(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("QuickAdd(missing) error = %v, want ErrNotFound", err)
	}
}

func TestShortcutEditKeepsUsage(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newLedgerService(t, june10)

	sc, _ := svc.AddShortcut(ctx, ShortcutInput{Amount: core.NewMoney(1500), Description: "bus", Category: "Transport"})
	_, _ = svc.QuickAdd(ctx, sc.ID)

	updated, err := svc.UpdateShortcut(ctx, sc.ID, ShortcutInput{Amount: core.NewMoney(2000), Description: "bus", Category: "Transport"})
	if err != nil {
		t.Fatalf("UpdateShortcut() error = %v", err)
	}
	if !updated.Amount.Equal(core.NewMoney(2000)) || updated.UsageCount != 1 {
		t.Errorf("UpdateShortcut() = %+v", updated)
	}
	if _, err := svc.UpdateShortcut(ctx, sc.ID, ShortcutInput{Amount: core.Zero, Description: "bus", Category: "Transport"}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("UpdateShortcut(zero) error = %v, want ErrInvalidAmount", err)
	}

	if err := svc.DeleteShortcut(ctx, sc.ID); err != nil {
		t.Fatalf("DeleteShortcut() error = %v", err)
	}
	if all, _ := ledger.Shortcuts(ctx); len(all) != 0 {
		t.Errorf("shortcuts after delete = %+v", all)
	}
	if err := svc.DeleteShortcut(ctx, sc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteShortcut() error = %v, want ErrNotFound", err)
	}
}
