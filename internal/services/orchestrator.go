package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/sheets"
	"tally/internal/storage"
)

var (
	// ErrCycleInFlight is returned when a cycle is requested while another
	// cycle or an edit holds the ledger. The request is dropped.
	ErrCycleInFlight = errors.New("reconciliation cycle already in flight")
	// ErrTransientStore marks store failures worth retrying on the next tick.
	ErrTransientStore = errors.New("transient store failure")
)

// Cycle triggers, recorded in logs.
const (
	TriggerSchedule = "schedule"
	TriggerEdit     = "edit"
	TriggerStartup  = "startup"
	TriggerManual   = "manual"
)

// OrchestratorConfig holds the collaborators of an Orchestrator. Only the
// ledger and state store are required.
type OrchestratorConfig struct {
	Location *time.Location       // month boundaries; nil means UTC
	Notifier Notifier             // nil drops events after logging
	History  sheets.HistoryWriter // nil skips history export
	Logger   *log.Logger
	Now      func() time.Time
}

// Orchestrator runs the load, reconcile, tick, evaluate and persist cycle
// and serializes it with user edits. One mutex guards the ledger: cycles
// try it and are dropped when busy, edits wait for it.
type Orchestrator struct {
	ledger   *storage.Ledger
	state    *StateStore
	notifier Notifier
	history  sheets.HistoryWriter
	loc      *time.Location
	now      func() time.Time
	logger   *log.Logger
	events   *log.StructuredLogger

	mu     sync.Mutex
	seq    atomic.Uint64
	warned map[string]core.Period // budget warnings already sent, guarded by mu

	trigger chan string

	// Lifecycle management
	lifeMu  sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewOrchestrator(ledger *storage.Ledger, state *StateStore, cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentOrchestrator)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		ledger:   ledger,
		state:    state,
		notifier: cfg.Notifier,
		history:  cfg.History,
		loc:      cfg.Location,
		now:      now,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
		warned:   map[string]core.Period{},
		trigger:  make(chan string, 1),
	}
}

// State returns the store the orchestrator publishes snapshots to.
func (o *Orchestrator) State() *StateStore {
	return o.state
}

// Location returns the time zone used for month boundaries.
func (o *Orchestrator) Location() *time.Location {
	return location(o.loc)
}

type ledgerData struct {
	expenses []core.Transaction
	incomes  []core.Transaction
	budgets  []core.Budget
	rules    []core.RecurringRule
	settings core.NotificationSettings
}

// RunCycle performs one reconciliation. It returns ErrCycleInFlight without
// doing anything when the ledger is busy. On failure nothing is persisted,
// the previous snapshot stays current and a failure notice is recorded.
func (o *Orchestrator) RunCycle(ctx context.Context, trigger string) (*Snapshot, error) {
	if !o.mu.TryLock() {
		return nil, ErrCycleInFlight
	}
	defer o.mu.Unlock()

	seq := o.seq.Add(1)
	ctx = log.WithCycle(log.NewContext(ctx, o.logger), seq)
	start := time.Now()
	// due dates and month windows follow the configured zone, not the host's
	now := o.now().In(o.Location())

	snap, res, err := o.reconcile(ctx, seq, now)
	if err != nil {
		err = classify(err)
		o.state.RecordFailure(Failure{Seq: seq, At: now, Err: err})
		o.events.LogCycleFailed(ctx, seq, err)
		return nil, err
	}

	o.markWarned(res.warned)
	if !o.state.Publish(snap) {
		o.logger.WarnContext(ctx, "Discarded stale snapshot", log.FieldCycleSeq, seq)
	}
	o.dispatch(ctx, snap.Events, res.rollovers)

	o.events.LogCycleComplete(ctx, log.CycleStats{
		Seq:          seq,
		Trigger:      trigger,
		Duration:     time.Since(start),
		Events:       len(snap.Events),
		Rollovers:    len(res.rollovers),
		Materialized: res.materialized,
		Balance:      snap.Balance,
	})
	return snap, nil
}

type cycleResult struct {
	rollovers    []core.Rollover
	materialized int
	warned       map[string]core.Period
}

func (o *Orchestrator) reconcile(ctx context.Context, seq uint64, now time.Time) (*Snapshot, cycleResult, error) {
	var res cycleResult
	data, err := o.load(ctx)
	if err != nil {
		return nil, res, err
	}
	ref := core.PeriodOf(now, o.loc)

	rec := BudgetReconciler{Location: o.loc}.Reconcile(data.budgets, data.expenses, ref)
	tick := RecurringScheduler{}.Tick(data.rules, now)

	expenses := data.expenses
	budgets := rec.Budgets
	events := rec.Events
	if len(tick.Materialized) > 0 {
		// newest first, like user-entered records
		expenses = append(append([]core.Transaction(nil), tick.Materialized...), data.expenses...)
		again := BudgetReconciler{Location: o.loc}.Reconcile(budgets, expenses, ref)
		budgets = again.Budgets
		events = append(events, again.Events...)
	}
	if len(tick.Skipped) > 0 {
		o.logger.WarnContext(ctx, "Skipped recurring rules with unsupported frequency", "rule_ids", tick.Skipped)
	}
	if !data.settings.BudgetAlerts {
		// flags stay set; only delivery is suppressed
		events = nil
	}
	for i := range events {
		events[i].RaisedAt = now
	}

	engine := AlertEngine{Location: o.loc, Settings: data.settings}
	eval := engine.Evaluate(budgets, tick.Rules, now)
	fresh, warned := o.filterWarnings(eval.Events)
	events = append(events, fresh...)

	settings := data.settings
	reminder, updated, settingsChanged := engine.Reminder(settings, expenses, now)
	if reminder != nil {
		events = append(events, *reminder)
	}

	cs := storage.NewChangeset()
	if err := cs.PutBudgets(eval.Budgets); err != nil {
		return nil, res, err
	}
	if err := cs.PutRecurringRules(eval.Rules); err != nil {
		return nil, res, err
	}
	if len(tick.Materialized) > 0 {
		if err := cs.PutExpenses(expenses); err != nil {
			return nil, res, err
		}
	}
	if settingsChanged {
		settings = updated
		if err := cs.PutSettings(settings); err != nil {
			return nil, res, err
		}
	}
	if err := o.ledger.Commit(ctx, cs); err != nil {
		return nil, res, err
	}

	return &Snapshot{
		Seq:      seq,
		TakenAt:  now,
		Expenses: expenses,
		Incomes:  data.incomes,
		Budgets:  eval.Budgets,
		Rules:    eval.Rules,
		Settings: settings,
		Balance:  core.ComputeBalance(data.incomes, expenses),
		Events:   events,
	}, cycleResult{rollovers: rec.Rollovers, materialized: len(tick.Materialized), warned: warned}, nil
}

// load reads every collection concurrently. Each goroutine owns one key.
func (o *Orchestrator) load(ctx context.Context) (ledgerData, error) {
	var d ledgerData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { d.expenses, err = o.ledger.Expenses(gctx); return })
	g.Go(func() (err error) { d.incomes, err = o.ledger.Incomes(gctx); return })
	g.Go(func() (err error) { d.budgets, err = o.ledger.Budgets(gctx); return })
	g.Go(func() (err error) { d.rules, err = o.ledger.RecurringRules(gctx); return })
	g.Go(func() (err error) { d.settings, err = o.ledger.Settings(gctx); return })
	if err := g.Wait(); err != nil {
		return ledgerData{}, err
	}
	return d, nil
}

// filterWarnings drops budget warnings already sent for the same budget and
// month during this process's lifetime. It returns the warnings it let
// through; they count as sent only once the cycle commits.
func (o *Orchestrator) filterWarnings(events []core.AlertEvent) ([]core.AlertEvent, map[string]core.Period) {
	out := events[:0:0]
	warned := map[string]core.Period{}
	for _, ev := range events {
		if ev.Kind == core.AlertBudgetWarning {
			p := core.PeriodOf(ev.RaisedAt, o.loc)
			if sent, ok := o.warned[ev.Payload.BudgetID]; ok && sent == p {
				continue
			}
			warned[ev.Payload.BudgetID] = p
		}
		out = append(out, ev)
	}
	return out, warned
}

func (o *Orchestrator) markWarned(warned map[string]core.Period) {
	for id, p := range warned {
		o.warned[id] = p
	}
}

// dispatch forwards events and rollovers. Failures are logged, never
// returned: the cycle is already committed.
func (o *Orchestrator) dispatch(ctx context.Context, events []core.AlertEvent, rollovers []core.Rollover) {
	if len(events) > 0 {
		if o.notifier == nil {
			for _, ev := range events {
				o.events.LogAlert(ctx, ev)
			}
		} else if err := o.notifier.Notify(ctx, events); err != nil {
			o.events.LogError(ctx, "Failed to deliver alerts", err, log.ComponentOrchestrator, log.OpNotify,
				log.LogFields{"count": len(events)})
		}
	}
	if len(rollovers) > 0 && o.history != nil {
		if err := o.history.AppendHistory(ctx, rollovers); err != nil {
			o.events.LogError(ctx, "Failed to export budget history", err, log.ComponentSheets, log.OpExport,
				log.LogFields{"count": len(rollovers)})
		}
	}
}

func classify(err error) error {
	if err == nil || storage.IsValidation(err) || errors.Is(err, ErrTransientStore) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientStore, err)
}

// Edit runs fn while holding the ledger, so it never interleaves with a
// cycle, then requests a cycle to reconcile the change.
func (o *Orchestrator) Edit(ctx context.Context, fn func(ctx context.Context, l *storage.Ledger) error) error {
	o.mu.Lock()
	err := fn(ctx, o.ledger)
	o.mu.Unlock()
	if err != nil {
		return err
	}
	o.Trigger(TriggerEdit)
	return nil
}

// Trigger requests a cycle from the run loop. Requests made while one is
// already pending are coalesced.
func (o *Orchestrator) Trigger(reason string) {
	select {
	case o.trigger <- reason:
	default:
	}
}

// Start begins serving triggers. Returns an error if already running.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifeMu.Lock()
	if o.running {
		o.lifeMu.Unlock()
		return fmt.Errorf("orchestrator is already running")
	}
	o.running = true
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	o.lifeMu.Unlock()

	go o.runLoop(ctx)
	o.logger.InfoContext(ctx, "Orchestrator started")
	return nil
}

// Stop waits for the run loop to finish its current cycle.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.lifeMu.Lock()
	if !o.running {
		o.lifeMu.Unlock()
		return nil
	}
	o.running = false
	close(o.stopCh)
	done := o.doneCh
	o.lifeMu.Unlock()

	select {
	case <-done:
		o.logger.InfoContext(ctx, "Orchestrator stopped gracefully")
		return nil
	case <-ctx.Done():
		o.logger.WarnContext(ctx, "Orchestrator stop timed out")
		return ctx.Err()
	}
}

func (o *Orchestrator) runLoop(ctx context.Context) {
	defer close(o.doneCh)
	for {
		select {
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		case reason := <-o.trigger:
			if _, err := o.RunCycle(ctx, reason); errors.Is(err, ErrCycleInFlight) {
				o.logger.DebugContext(ctx, "Dropped cycle request, another cycle is running", log.FieldTrigger, reason)
			}
		}
	}
}
