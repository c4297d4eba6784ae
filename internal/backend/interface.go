// Package backend assembles the ledger store and its outbound adapters from
// configuration.
package backend

import (
	"context"
	"time"

	"tally/internal/services"
	"tally/internal/sheets"
	"tally/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired ledger, its collaborators and a cleanup
// function releasing them in reverse order of creation.
type BackendResult struct {
	Ledger   *storage.Ledger
	Notifier services.Notifier
	History  sheets.HistoryWriter // nil when export is disabled
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	StoreTimeout time.Duration
	CacheMaxCost int64 // 0 disables the read cache
	CacheTTL     time.Duration

	// Alerts; an empty URL keeps alerts in the log
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// History export; an empty spreadsheet id disables it
	GoogleSpreadsheetID      string
	GoogleHistorySheet       string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
