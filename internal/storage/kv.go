// Package storage persists the ledger collections as named JSON blobs.
//
// The KV port mirrors a simple device key-value store: whole blobs are read
// and written by key, with no transactional guarantee across keys unless the
// implementation also satisfies BatchWriter.
package storage

import (
	"context"
	"errors"
)

// Collection keys.
const (
	KeyExpenses             = "expenses"
	KeyIncomes              = "incomes"
	KeyBudgets              = "budgets"
	KeyRecurring            = "recurringTransactions"
	KeyShortcuts            = "quickAddShortcuts"
	KeyNotificationSettings = "notificationSettings"
)

var (
	// ErrTimeout is returned when a store operation exceeds its deadline.
	ErrTimeout = errors.New("store operation timed out")
	// ErrClosed is returned by stores used after Close.
	ErrClosed = errors.New("store closed")
)

type KV interface {
	// Get returns the blob stored under key; ok is false when absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// BatchWriter is implemented by stores that can write several keys
// atomically.
type BatchWriter interface {
	SetMany(ctx context.Context, blobs map[string][]byte) error
}

// Store is a KV that holds resources until closed.
type Store interface {
	KV
	Close() error
}

// Versioner is implemented by stores that other processes may write to.
// DataVersion changes whenever another connection commits.
type Versioner interface {
	DataVersion(ctx context.Context) (int64, error)
}

// timeoutErr maps a context deadline to ErrTimeout, keeping the original
// error in the chain.
func timeoutErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}
