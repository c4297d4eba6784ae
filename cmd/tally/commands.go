package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/storage"
)

func subcommand(args []string, name string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, usageErr("%s needs a subcommand", name)
	}
	return args[0], args[1:], nil
}

func runExpense(a *app, args []string) error {
	sub, rest, err := subcommand(args, "expense")
	if err != nil {
		return err
	}
	switch sub {
	case "add":
		fs := newFlagSet("expense add")
		amount := fs.String("amount", "", "amount spent")
		category := fs.String("category", "", "category")
		desc := fs.String("desc", "", "description")
		date := fs.String("date", "", "date, YYYY-MM-DD (default today)")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		in, err := expenseInput(a, *amount, *category, *desc, *date)
		if err != nil {
			return err
		}
		tx, err := a.svc.AddExpense(a.ctx, in)
		if err != nil {
			return err
		}
		a.afterEdit()
		fmt.Fprintf(a.out, "Added expense %s: %s %s (%s)\n", tx.ID, tx.Amount, tx.Description, tx.Category)
		return nil

	case "update":
		id, rest, err := splitID(rest)
		if err != nil {
			return err
		}
		all, err := a.ledger.Expenses(a.ctx)
		if err != nil {
			return err
		}
		cur, ok := find(all, id)
		if !ok {
			return fmt.Errorf("expense %s: %w", id, services.ErrNotFound)
		}
		fs := newFlagSet("expense update")
		amount := fs.String("amount", cur.Amount.String(), "amount spent")
		category := fs.String("category", cur.Category, "category")
		desc := fs.String("desc", cur.Description, "description")
		date := fs.String("date", "", "date, YYYY-MM-DD (default unchanged)")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		in, err := expenseInput(a, *amount, *category, *desc, *date)
		if err != nil {
			return err
		}
		tx, err := a.svc.UpdateExpense(a.ctx, id, in)
		if err != nil {
			return err
		}
		a.afterEdit()
		fmt.Fprintf(a.out, "Updated expense %s: %s %s (%s)\n", tx.ID, tx.Amount, tx.Description, tx.Category)
		return nil

	case "delete":
		id, _, err := splitID(rest)
		if err != nil {
			return err
		}
		if err := a.svc.DeleteExpense(a.ctx, id); err != nil {
			return err
		}
		a.afterEdit()
		fmt.Fprintf(a.out, "Deleted expense %s\n", id)
		return nil

	case "list":
		fs := newFlagSet("expense list")
		month := fs.String("month", "", "month, YYYY-MM (default current)")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		p, err := parseMonth(*month, a.now(), a.loc)
		if err != nil {
			return err
		}
		snap, err := a.reconciled()
		if err != nil {
			return err
		}
		return renderTransactions(a.out, inPeriod(snap.Expenses, p, a), true, a.loc)
	}
	return usageErr("unknown expense subcommand %q", sub)
}

func expenseInput(a *app, amount, category, desc, date string) (services.ExpenseInput, error) {
	m, err := parseAmount(amount)
	if err != nil {
		return services.ExpenseInput{}, err
	}
	d, err := parseDate(date, a.loc)
	if err != nil {
		return services.ExpenseInput{}, err
	}
	return services.ExpenseInput{Amount: m, Category: category, Description: desc, Date: d}, nil
}

func runIncome(a *app, args []string) error {
	sub, rest, err := subcommand(args, "income")
	if err != nil {
		return err
	}
	switch sub {
	case "add", "update":
		var id string
		cur := core.Transaction{}
		if sub == "update" {
			if id, rest, err = splitID(rest); err != nil {
				return err
			}
			all, err := a.ledger.Incomes(a.ctx)
			if err != nil {
				return err
			}
			var ok bool
			if cur, ok = find(all, id); !ok {
				return fmt.Errorf("income %s: %w", id, services.ErrNotFound)
			}
		}
		fs := newFlagSet("income " + sub)
		amount := fs.String("amount", amountOrEmpty(cur.Amount, sub), "amount received")
		desc := fs.String("desc", cur.Description, "description")
		note := fs.String("note", cur.Note, "optional note")
		date := fs.String("date", "", "date, YYYY-MM-DD")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		m, err := parseAmount(*amount)
		if err != nil {
			return err
		}
		d, err := parseDate(*date, a.loc)
		if err != nil {
			return err
		}
		in := services.IncomeInput{Amount: m, Description: *desc, Note: *note, Date: d}
		var tx core.Transaction
		if sub == "add" {
			tx, err = a.svc.AddIncome(a.ctx, in)
		} else {
			tx, err = a.svc.UpdateIncome(a.ctx, id, in)
		}
		if err != nil {
			return err
		}
		a.afterEdit()
		fmt.Fprintf(a.out, "Saved income %s: %s %s\n", tx.ID, tx.Amount, tx.Description)
		return nil

	case "delete":
		id, _, err := splitID(rest)
		if err != nil {
			return err
		}
		if err := a.svc.DeleteIncome(a.ctx, id); err != nil {
			return err
		}
		a.afterEdit()
		fmt.Fprintf(a.out, "Deleted income %s\n", id)
		return nil

	case "list":
		fs := newFlagSet("income list")
		month := fs.String("month", "", "month, YYYY-MM (default current)")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		p, err := parseMonth(*month, a.now(), a.loc)
		if err != nil {
			return err
		}
		snap, err := a.reconciled()
		if err != nil {
			return err
		}
		return renderTransactions(a.out, inPeriod(snap.Incomes, p, a), false, a.loc)
	}
	return usageErr("unknown income subcommand %q", sub)
}

func amountOrEmpty(m core.Money, sub string) string {
	if sub == "add" {
		return ""
	}
	return m.String()
}

func runBudget(a *app, args []string) error {
	sub, rest, err := subcommand(args, "budget")
	if err != nil {
		return err
	}
	switch sub {
	case "set":
		fs := newFlagSet("budget set")
		category := fs.String("category", "", "category")
		amount := fs.String("amount", "", "monthly allocation")
		overwrite := fs.Bool("overwrite", false, "replace the amount of an existing budget")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		m, err := parseAmount(*amount)
		if err != nil {
			return err
		}
		b, err := a.svc.SetBudget(a.ctx, *category, m, *overwrite)
		if errors.Is(err, services.ErrBudgetExists) {
			return fmt.Errorf("%w (use --overwrite to replace its amount)", err)
		}
		if err != nil {
			return err
		}
		a.afterEdit()
		fmt.Fprintf(a.out, "Budget %s: %s for %s\n", b.ID, b.Amount, b.Category)
		return nil

	case "delete":
		id, _, err := splitID(rest)
		if err != nil {
			return err
		}
		if err := a.svc.DeleteBudget(a.ctx, id); err != nil {
			return err
		}
		a.afterEdit()
		fmt.Fprintf(a.out, "Deleted budget %s\n", id)
		return nil

	case "list":
		fs := newFlagSet("budget list")
		month := fs.String("month", "", "month, YYYY-MM (default current)")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		p, err := parseMonth(*month, a.now(), a.loc)
		if err != nil {
			return err
		}
		snap, err := a.reconciled()
		if err != nil {
			return err
		}
		views := services.BudgetsForPeriod(snap.Budgets, p)
		return renderBudgets(a.out, p, views, services.SummarizeBudgets(views))
	}
	return usageErr("unknown budget subcommand %q", sub)
}

func runRecurring(a *app, args []string) error {
	sub, rest, err := subcommand(args, "recurring")
	if err != nil {
		return err
	}
	switch sub {
	case "add":
		fs := newFlagSet("recurring add")
		amount := fs.String("amount", "", "amount per occurrence")
		desc := fs.String("desc", "", "description")
		category := fs.String("category", "", "category")
		freq := fs.String("frequency", "monthly", "daily, weekly or monthly")
		day := fs.Int("day", 0, "day of month for monthly rules (default today's day)")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		m, err := parseAmount(*amount)
		if err != nil {
			return err
		}
		f, err := parseFrequency(*freq)
		if err != nil {
			return err
		}
		in := services.RecurringInput{Amount: m, Description: *desc, Category: *category, Frequency: f}
		if *day != 0 {
			in.DayOfMonth = core.IntPtr(*day)
		}
		r, err := a.svc.AddRecurring(a.ctx, in)
		if err != nil {
			return err
		}
		a.afterEdit()
		fmt.Fprintf(a.out, "Recurring %s: %s %s, next due %s\n", r.ID, r.Amount, r.Description, r.NextDue.In(a.loc).Format("2006-01-02"))
		return nil

	case "delete":
		id, _, err := splitID(rest)
		if err != nil {
			return err
		}
		if err := a.svc.DeleteRecurring(a.ctx, id); err != nil {
			return err
		}
		a.afterEdit()
		fmt.Fprintf(a.out, "Deleted recurring %s\n", id)
		return nil

	case "list":
		snap, err := a.reconciled()
		if err != nil {
			return err
		}
		return renderRules(a.out, snap.Rules, a.now(), a.loc)
	}
	return usageErr("unknown recurring subcommand %q", sub)
}

func runShortcut(a *app, args []string) error {
	sub, rest, err := subcommand(args, "shortcut")
	if err != nil {
		return err
	}
	switch sub {
	case "add":
		fs := newFlagSet("shortcut add")
		amount := fs.String("amount", "", "amount of each use")
		category := fs.String("category", "", "category")
		desc := fs.String("desc", "", "description")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		m, err := parseAmount(*amount)
		if err != nil {
			return err
		}
		sc, err := a.svc.AddShortcut(a.ctx, services.ShortcutInput{Amount: m, Description: *desc, Category: *category})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added shortcut %s: %s %s (%s)\n", sc.ID, sc.Amount, sc.Description, sc.Category)
		return nil

	case "update":
		id, rest, err := splitID(rest)
		if err != nil {
			return err
		}
		all, err := a.ledger.Shortcuts(a.ctx)
		if err != nil {
			return err
		}
		var cur core.Shortcut
		for _, sc := range all {
			if sc.ID == id {
				cur = sc
			}
		}
		if cur.ID == "" {
			return fmt.Errorf("shortcut %s: %w", id, services.ErrNotFound)
		}
		fs := newFlagSet("shortcut update")
		amount := fs.String("amount", cur.Amount.String(), "amount of each use")
		category := fs.String("category", cur.Category, "category")
		desc := fs.String("desc", cur.Description, "description")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		m, err := parseAmount(*amount)
		if err != nil {
			return err
		}
		sc, err := a.svc.UpdateShortcut(a.ctx, id, services.ShortcutInput{Amount: m, Description: *desc, Category: *category})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Updated shortcut %s: %s %s (%s)\n", sc.ID, sc.Amount, sc.Description, sc.Category)
		return nil

	case "delete":
		id, _, err := splitID(rest)
		if err != nil {
			return err
		}
		if err := a.svc.DeleteShortcut(a.ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Deleted shortcut %s\n", id)
		return nil

	case "use":
		id, _, err := splitID(rest)
		if err != nil {
			return err
		}
		tx, err := a.svc.QuickAdd(a.ctx, id)
		if err != nil {
			return err
		}
		a.afterEdit()
		fmt.Fprintf(a.out, "Added expense %s: %s %s (%s)\n", tx.ID, tx.Amount, tx.Description, tx.Category)
		return nil

	case "list":
		all, err := a.ledger.Shortcuts(a.ctx)
		if err != nil {
			return err
		}
		return renderShortcuts(a.out, all)
	}
	return usageErr("unknown shortcut subcommand %q", sub)
}

func runAnalytics(a *app, args []string) error {
	fs := newFlagSet("analytics")
	rng := fs.String("range", "month", "week, month or year")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	r, err := services.ParseRange(*rng)
	if err != nil {
		return usageErr("%v", err)
	}
	snap, err := a.reconciled()
	if err != nil {
		return err
	}
	return renderAnalytics(a.out, services.Analytics(snap.Expenses, r, a.now(), a.loc), a.loc)
}

func runBalance(a *app, _ []string) error {
	snap, err := a.reconciled()
	if err != nil {
		return err
	}
	return renderBalance(a.out, snap.Balance)
}

func runStats(a *app, _ []string) error {
	snap, err := a.reconciled()
	if err != nil {
		return err
	}
	st := services.MonthlyStats(snap.Expenses, snap.Incomes, snap.Budgets, a.now(), a.loc)
	return renderStats(a.out, st, a.now(), a.loc)
}

func runRecommend(a *app, _ []string) error {
	snap, err := a.reconciled()
	if err != nil {
		return err
	}
	return renderRecommendations(a.out, services.Recommend(snap.Expenses, a.now(), a.loc))
}

func runReconcile(a *app, _ []string) error {
	snap, err := a.reconciled()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Cycle %d complete: %d alerts\n", snap.Seq, len(snap.Events))
	return renderEvents(a.out, snap.Events)
}

func runSettings(a *app, args []string) error {
	fs := newFlagSet("settings")
	reminders := fs.String("reminders", "", "daily reminder on|off")
	at := fs.String("time", "", "daily reminder time, HH:MM")
	budgetAlerts := fs.String("budget-alerts", "", "budget alerts on|off")
	recurringAlerts := fs.String("recurring-alerts", "", "recurring alerts on|off")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	toggles := map[string]*string{"reminders": reminders, "budget-alerts": budgetAlerts, "recurring-alerts": recurringAlerts}
	parsed := map[string]*bool{}
	for name, v := range toggles {
		b, err := parseToggle(name, *v)
		if err != nil {
			return err
		}
		parsed[name] = b
	}

	var s core.NotificationSettings
	var err error
	if fs.NFlag() == 0 {
		s, err = a.ledger.Settings(a.ctx)
	} else {
		s, err = a.svc.UpdateSettings(a.ctx, func(s *core.NotificationSettings) {
			if v := parsed["reminders"]; v != nil {
				s.Enabled = *v
			}
			if v := parsed["budget-alerts"]; v != nil {
				s.BudgetAlerts = *v
			}
			if v := parsed["recurring-alerts"]; v != nil {
				s.RecurringAlerts = *v
			}
			if *at != "" {
				s.ReminderTime = strings.TrimSpace(*at)
			}
		})
		if err == nil {
			a.afterEdit()
		}
	}
	if err != nil {
		return err
	}
	return renderSettings(a.out, s)
}

func runStatus(a *app, _ []string) error {
	snap, err := a.reconciled()
	if err != nil {
		if f := a.orch.State().LastFailure(); f != nil {
			fmt.Fprintf(a.out, "Last cycle %d failed at %s\n", f.Seq, f.At.In(a.loc).Format("2006-01-02 15:04"))
		}
		return err
	}
	return renderStatus(a.out, snap, a.loc)
}

func runReset(a *app, args []string) error {
	fs := newFlagSet("reset")
	yes := fs.Bool("yes", false, "confirm deleting every collection")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if !*yes {
		return usageErr("reset deletes all data; pass --yes to confirm")
	}
	err := a.orch.Edit(a.ctx, func(ctx context.Context, l *storage.Ledger) error {
		return l.Reset(ctx)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "All data deleted")
	return nil
}

func find(txs []core.Transaction, id string) (core.Transaction, bool) {
	for _, t := range txs {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

// inPeriod returns the transactions dated in p, newest first.
func inPeriod(txs []core.Transaction, p core.Period, a *app) []core.Transaction {
	var out []core.Transaction
	for _, t := range txs {
		if p.Contains(t.Date, a.loc) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
