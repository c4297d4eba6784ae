package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"tally/internal/core"
)

// ValidationError reports a persisted or outgoing collection that does not
// satisfy the data model. Index is the offending record, or -1 when the blob
// itself could not be decoded.
type ValidationError struct {
	Key   string
	Index int
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("collection %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("collection %s record %d: %v", e.Key, e.Index, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Ledger reads and writes the typed collections through a KV. Every
// operation is bounded by the configured timeout.
type Ledger struct {
	kv      KV
	timeout time.Duration
}

func NewLedger(kv KV, timeout time.Duration) *Ledger {
	return &Ledger{kv: kv, timeout: timeout}
}

func (l *Ledger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Ledger) Expenses(ctx context.Context) ([]core.Transaction, error) {
	return load(ctx, l, KeyExpenses, core.Transaction.ValidateExpense)
}

func (l *Ledger) Incomes(ctx context.Context) ([]core.Transaction, error) {
	return load(ctx, l, KeyIncomes, core.Transaction.ValidateIncome)
}

func (l *Ledger) Budgets(ctx context.Context) ([]core.Budget, error) {
	return load(ctx, l, KeyBudgets, core.Budget.Validate)
}

func (l *Ledger) RecurringRules(ctx context.Context) ([]core.RecurringRule, error) {
	return load(ctx, l, KeyRecurring, core.RecurringRule.Validate)
}

func (l *Ledger) Shortcuts(ctx context.Context) ([]core.Shortcut, error) {
	return load(ctx, l, KeyShortcuts, core.Shortcut.Validate)
}

// Settings returns the stored notification settings, or the defaults when
// none were saved.
func (l *Ledger) Settings(ctx context.Context) (core.NotificationSettings, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	raw, ok, err := l.kv.Get(ctx, KeyNotificationSettings)
	if err != nil {
		return core.NotificationSettings{}, timeoutErr(ctx, fmt.Errorf("load %s: %w", KeyNotificationSettings, err))
	}
	if !ok || len(raw) == 0 {
		return core.DefaultNotificationSettings(), nil
	}
	var s core.NotificationSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return core.NotificationSettings{}, &ValidationError{Key: KeyNotificationSettings, Index: -1, Err: err}
	}
	if err := s.Validate(); err != nil {
		return core.NotificationSettings{}, &ValidationError{Key: KeyNotificationSettings, Index: -1, Err: err}
	}
	return s, nil
}

func (l *Ledger) SaveExpenses(ctx context.Context, txs []core.Transaction) error {
	return l.saveOne(ctx, func(cs *Changeset) error { return cs.PutExpenses(txs) })
}

func (l *Ledger) SaveIncomes(ctx context.Context, txs []core.Transaction) error {
	return l.saveOne(ctx, func(cs *Changeset) error { return cs.PutIncomes(txs) })
}

func (l *Ledger) SaveBudgets(ctx context.Context, budgets []core.Budget) error {
	return l.saveOne(ctx, func(cs *Changeset) error { return cs.PutBudgets(budgets) })
}

func (l *Ledger) SaveRecurringRules(ctx context.Context, rules []core.RecurringRule) error {
	return l.saveOne(ctx, func(cs *Changeset) error { return cs.PutRecurringRules(rules) })
}

func (l *Ledger) SaveShortcuts(ctx context.Context, shortcuts []core.Shortcut) error {
	return l.saveOne(ctx, func(cs *Changeset) error { return cs.PutShortcuts(shortcuts) })
}

func (l *Ledger) SaveSettings(ctx context.Context, s core.NotificationSettings) error {
	return l.saveOne(ctx, func(cs *Changeset) error { return cs.PutSettings(s) })
}

func (l *Ledger) saveOne(ctx context.Context, put func(*Changeset) error) error {
	cs := NewChangeset()
	if err := put(cs); err != nil {
		return err
	}
	return l.Commit(ctx, cs)
}

// Commit writes every staged collection. When the KV implements BatchWriter
// the write is all-or-nothing; otherwise collections are written one by one
// and a failure part way leaves the earlier keys updated.
func (l *Ledger) Commit(ctx context.Context, cs *Changeset) error {
	if cs == nil || len(cs.blobs) == 0 {
		return nil
	}
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	if bw, ok := l.kv.(BatchWriter); ok {
		if err := bw.SetMany(ctx, cs.blobs); err != nil {
			return timeoutErr(ctx, fmt.Errorf("commit %v: %w", cs.Keys(), err))
		}
		return nil
	}
	for _, key := range cs.Keys() {
		if err := l.kv.Set(ctx, key, cs.blobs[key]); err != nil {
			return timeoutErr(ctx, fmt.Errorf("save %s: %w", key, err))
		}
	}
	return nil
}

// Reset removes every collection.
func (l *Ledger) Reset(ctx context.Context) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()
	for _, key := range []string{KeyExpenses, KeyIncomes, KeyBudgets, KeyRecurring, KeyShortcuts, KeyNotificationSettings} {
		if err := l.kv.Remove(ctx, key); err != nil {
			return timeoutErr(ctx, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return nil
}

func load[T any](ctx context.Context, l *Ledger, key string, validate func(T) error) ([]T, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	raw, ok, err := l.kv.Get(ctx, key)
	if err != nil {
		return nil, timeoutErr(ctx, fmt.Errorf("load %s: %w", key, err))
	}
	if !ok || len(raw) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ValidationError{Key: key, Index: -1, Err: err}
	}
	if err := validateAll(key, items, validate); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func validateAll[T any](key string, items []T, validate func(T) error) error {
	for i, item := range items {
		if err := validate(item); err != nil {
			return &ValidationError{Key: key, Index: i, Err: err}
		}
	}
	return nil
}

// Changeset stages encoded collections for a single Commit.
type Changeset struct {
	blobs map[string][]byte
}

func NewChangeset() *Changeset {
	return &Changeset{blobs: map[string][]byte{}}
}

func (c *Changeset) PutExpenses(txs []core.Transaction) error {
	return put(c, KeyExpenses, txs, core.Transaction.ValidateExpense)
}

func (c *Changeset) PutIncomes(txs []core.Transaction) error {
	return put(c, KeyIncomes, txs, core.Transaction.ValidateIncome)
}

func (c *Changeset) PutBudgets(budgets []core.Budget) error {
	return put(c, KeyBudgets, budgets, core.Budget.Validate)
}

func (c *Changeset) PutRecurringRules(rules []core.RecurringRule) error {
	return put(c, KeyRecurring, rules, core.RecurringRule.Validate)
}

func (c *Changeset) PutShortcuts(shortcuts []core.Shortcut) error {
	return put(c, KeyShortcuts, shortcuts, core.Shortcut.Validate)
}

func (c *Changeset) PutSettings(s core.NotificationSettings) error {
	if err := s.Validate(); err != nil {
		return &ValidationError{Key: KeyNotificationSettings, Index: -1, Err: err}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyNotificationSettings, err)
	}
	c.blobs[KeyNotificationSettings] = raw
	return nil
}

// Keys lists the staged collection keys in sorted order.
func (c *Changeset) Keys() []string {
	keys := make([]string, 0, len(c.blobs))
	for k := range c.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Changeset) Len() int { return len(c.blobs) }

func put[T any](c *Changeset, key string, items []T, validate func(T) error) error {
	if err := validateAll(key, items, validate); err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	c.blobs[key] = raw
	return nil
}
