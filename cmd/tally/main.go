// Command tally records expenses, incomes, budgets and recurring rules and
// prints reports from the reconciled ledger.
//
// Commands:
//
//	expense    add, update, delete or list expenses
//	income     add, update, delete or list incomes
//	budget     set, delete or list monthly budgets
//	recurring  add, delete or list recurring expenses
//	shortcut   add, update, delete, use or list quick-add shortcuts
//	balance    print total income, expenses and balance
//	analytics  print spending insights for a week, month or year
//	stats      print this month's statistics
//	recommend  suggest budgets from the last three months
//	reconcile  run one reconciliation cycle now
//	settings   show or change notification settings
//	status     print the reconciled ledger state
//	reset      delete every collection
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"tally/internal/cli"
	"tally/internal/config"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
)

type app struct {
	ctx    context.Context
	out    io.Writer
	loc    *time.Location
	now    func() time.Time
	ledger *storage.Ledger
	orch   *services.Orchestrator
	svc    *services.LedgerService
	logger *log.Logger
}

type command func(a *app, args []string) error

var commands = map[string]command{
	"expense":   runExpense,
	"income":    runIncome,
	"budget":    runBudget,
	"recurring": runRecurring,
	"balance":   runBalance,
	"shortcut":  runShortcut,
	"analytics": runAnalytics,
	"stats":     runStats,
	"recommend": runRecommend,
	"reconcile": runReconcile,
	"settings":  runSettings,
	"status":    runStatus,
	"reset":     runReset,
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(0)
	}
	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage(os.Stdout)
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage(os.Stderr)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	logger := newLogger()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	res := cli.InitBackend(ctx, logger, cfg)

	orch := services.NewOrchestrator(res.Ledger, services.NewStateStore(), services.OrchestratorConfig{
		Location: cfg.Location(),
		Notifier: res.Notifier,
		History:  res.History,
		Logger:   logger,
	})
	a := &app{
		ctx:    ctx,
		out:    os.Stdout,
		loc:    cfg.Location(),
		now:    time.Now,
		ledger: res.Ledger,
		orch:   orch,
		svc:    services.NewLedgerService(orch, logger),
		logger: logger,
	}

	err := cmd(a, os.Args[2:])
	if cerr := res.Cleanup(); cerr != nil {
		logger.Warn("Cleanup failed", log.FieldError, cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// newLogger keeps stdout for command output. Only warnings are logged
// unless LOG_LEVEL asks for more.
func newLogger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = os.Stderr
	cfg.Component = log.ComponentCLI
	cfg.Level = slog.LevelWarn
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if l, err := log.ParseLevel(lvl); err == nil {
			cfg.Level = l
		}
	}
	return log.New(cfg)
}

// reconciled runs a cycle so reports reflect rollovers and recurring
// expenses that are due.
func (a *app) reconciled() (*services.Snapshot, error) {
	snap, err := a.orch.RunCycle(a.ctx, services.TriggerManual)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	return snap, nil
}

// afterEdit reconciles right away; the CLI has no run loop serving the
// trigger raised by the edit.
func (a *app) afterEdit() {
	if _, err := a.orch.RunCycle(a.ctx, services.TriggerEdit); err != nil {
		a.logger.Warn("Reconciliation after edit failed", log.FieldError, err)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tally <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  expense add|update|delete|list     manage expenses")
	fmt.Fprintln(w, "  income add|update|delete|list      manage incomes")
	fmt.Fprintln(w, "  budget set|delete|list             manage monthly budgets")
	fmt.Fprintln(w, "  recurring add|delete|list          manage recurring expenses")
	fmt.Fprintln(w, "  shortcut add|update|delete|use|list")
	fmt.Fprintln(w, "                                     quick-add expense templates")
	fmt.Fprintln(w, "  balance                            total income, expenses and balance")
	fmt.Fprintln(w, "  stats                              statistics for the current month")
	fmt.Fprintln(w, "  analytics --range week|month|year  spending insights for a range")
	fmt.Fprintln(w, "  recommend                          budget suggestions from recent spending")
	fmt.Fprintln(w, "  reconcile                          run a reconciliation cycle now")
	fmt.Fprintln(w, "  settings                           show or change notification settings")
	fmt.Fprintln(w, "  status                             reconciled ledger state")
	fmt.Fprintln(w, "  reset --yes                        delete all data")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  tally expense add --amount 1200 --category Food --desc Lunch")
	fmt.Fprintln(w, "  tally budget set --category Food --amount 100000")
	fmt.Fprintln(w, "  tally shortcut use <id>")
	fmt.Fprintln(w, "  tally recurring add --amount 30000 --desc Rent --category Housing --frequency monthly --day 1")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  DATA_BACKEND, SQLITE_DB_PATH, TIMEZONE, LOG_LEVEL (see .env.example)")
}
