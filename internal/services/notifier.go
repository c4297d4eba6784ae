package services

import (
	"context"

	"tally/internal/core"
	"tally/internal/log"
)

// Notifier delivers alert events. Delivery is fire-and-forget: the
// orchestrator logs a failed Notify and moves on.
type Notifier interface {
	Notify(ctx context.Context, events []core.AlertEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, events []core.AlertEvent) error

func (f NotifierFunc) Notify(ctx context.Context, events []core.AlertEvent) error {
	return f(ctx, events)
}

// LogNotifier writes every event to the structured log. It is the notifier
// used when no message broker is configured.
type LogNotifier struct {
	logger *log.StructuredLogger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: log.NewStructuredLogger(logger.WithComponent(log.ComponentOrchestrator))}
}

func (n *LogNotifier) Notify(ctx context.Context, events []core.AlertEvent) error {
	for _, ev := range events {
		n.logger.LogAlert(ctx, ev)
	}
	return nil
}

// MultiNotifier fans events out to several notifiers and returns the first
// error after trying all of them.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, events []core.AlertEvent) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, events); err != nil && first == nil {
			first = err
		}
	}
	return first
}
