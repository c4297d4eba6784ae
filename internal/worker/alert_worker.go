// Package worker holds the consumer side of the alert queue.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/services"
)

// DefaultMaxAge drops alerts that sat in the queue for longer than a day.
const DefaultMaxAge = 24 * time.Hour

// AlertStats counts what the worker did with consumed messages.
type AlertStats struct {
	Delivered  int64
	Duplicates int64
	Stale      int64
	Forgotten  int64 // delivered but refused by the seen cache
}

// AlertWorker delivers queued alerts to a sink. Redelivered messages are
// recognized by id and delivered once.
type AlertWorker struct {
	sink   services.Notifier
	seen   cache.Cache[time.Time]
	maxAge time.Duration
	now    func() time.Time
	logger *log.Logger

	delivered  atomic.Int64
	duplicates atomic.Int64
	stale      atomic.Int64
	forgotten  atomic.Int64
}

// NewAlertWorker creates a worker. seen remembers delivered message ids and
// must hold them for at least maxAge; an id it refuses is not deduplicated.
// maxAge <= 0 disables the staleness check.
func NewAlertWorker(sink services.Notifier, seen cache.Cache[time.Time], maxAge time.Duration, logger *log.Logger) *AlertWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AlertWorker{
		sink:   sink,
		seen:   seen,
		maxAge: maxAge,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleAlert processes a single alert message from AMQP. A returned error
// requeues the message.
func (w *AlertWorker) HandleAlert(ctx context.Context, msg *amqp.AlertMessage) error {
	if _, dup := w.seen.Get(msg.ID); dup {
		w.duplicates.Add(1)
		w.logger.DebugContext(ctx, "Skipping redelivered alert", "id", msg.ID)
		return nil
	}

	raised := msg.Event.RaisedAt
	if raised.IsZero() {
		raised = msg.PublishedAt
	}
	if w.maxAge > 0 && !raised.IsZero() && w.now().Sub(raised) > w.maxAge {
		w.stale.Add(1)
		w.logger.InfoContext(ctx, "Dropping stale alert",
			"id", msg.ID,
			log.FieldAlertKind, msg.Event.Kind,
			"raised_at", raised)
		return nil
	}

	if err := w.sink.Notify(ctx, []core.AlertEvent{msg.Event}); err != nil {
		return fmt.Errorf("deliver alert %s: %w", msg.ID, err)
	}
	w.delivered.Add(1)
	if !w.seen.Set(msg.ID, w.now()) {
		w.forgotten.Add(1)
		w.logger.WarnContext(ctx, "Delivered alert id not remembered, a redelivery would repeat it",
			"id", msg.ID,
			log.FieldAlertKind, msg.Event.Kind)
	}
	return nil
}

func (w *AlertWorker) Stats() AlertStats {
	return AlertStats{
		Delivered:  w.delivered.Load(),
		Duplicates: w.duplicates.Load(),
		Stale:      w.stale.Load(),
		Forgotten:  w.forgotten.Load(),
	}
}
