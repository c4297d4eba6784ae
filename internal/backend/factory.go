package backend

import (
	"context"
	"errors"
	"fmt"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/log"
	"tally/internal/services"
	gsheet "tally/internal/sheets/google"
	"tally/internal/sheets/memory"
	"tally/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend. Optional adapters that
// fail to initialize are logged and left out; only store failures are fatal.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var closers []func() error
	res := &BackendResult{}
	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	kv, err := f.createStore(config)
	if err != nil {
		return nil, err
	}
	closers = append(closers, kv.Close)
	res.Ledger = storage.NewLedger(kv, config.StoreTimeout)

	notifiers := services.MultiNotifier{services.NewLogNotifier(f.logger)}
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, alerts stay in the log", log.FieldError, err)
		} else {
			closers = append(closers, client.Close)
			notifiers = append(notifiers, client)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}
	res.Notifier = notifiers

	switch {
	case config.GoogleSpreadsheetID != "":
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      config.GoogleSpreadsheetID,
			HistorySheet:       config.GoogleHistorySheet,
			ServiceAccountJSON: config.GoogleServiceAccountJSON,
			ServiceAccountFile: config.GoogleServiceAccountFile,
		})
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize Google Sheets client, history export disabled", log.FieldError, err)
		} else {
			res.History = client
		}
	case config.Type == MemoryBackend:
		res.History = memory.New()
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type,
		"cache_enabled", config.CacheMaxCost > 0,
		"amqp_enabled", len(notifiers) > 1,
		"history_export", res.History != nil)
	return res, nil
}

func (f *DefaultFactory) createStore(config Config) (storage.Store, error) {
	var kv storage.Store
	switch config.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		kv = store
	case MemoryBackend:
		kv = storage.NewMemoryStore()
		f.logger.Info("Initialized memory store")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	if config.CacheMaxCost == 0 {
		return kv, nil
	}
	c, err := cache.NewRistretto(config.CacheMaxCost, config.CacheTTL, cache.BytesCost)
	if err != nil {
		kv.Close()
		return nil, err
	}
	return storage.Cached(kv, c), nil
}
