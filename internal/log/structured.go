package log

import (
	"context"
	"log/slog"
	"time"

	"tally/internal/core"
)

// StructuredLogger logs the domain events of a reconciliation run.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// CycleStats summarizes one completed cycle.
type CycleStats struct {
	Seq          uint64
	Trigger      string
	Duration     time.Duration
	Events       int
	Rollovers    int
	Materialized int
	Balance      core.Balance
}

// LogCycleComplete logs a committed cycle. Quiet cycles go to debug.
func (sl *StructuredLogger) LogCycleComplete(ctx context.Context, s CycleStats) {
	level := slog.LevelInfo
	if s.Events == 0 && s.Rollovers == 0 && s.Materialized == 0 {
		level = slog.LevelDebug
	}
	fields := NewFields().
		WithCycle(s.Seq).
		WithDuration(s.Duration).
		WithOperation(OpReconcile)
	fields[FieldTrigger] = s.Trigger
	fields[FieldEvents] = s.Events
	fields[FieldRollovers] = s.Rollovers
	fields[FieldMaterialized] = s.Materialized
	fields["balance"] = s.Balance.Balance.String()

	sl.logger.log(ctx, level, "Reconciliation cycle complete", fields.ToSlice())
}

// LogCycleFailed logs a cycle that persisted nothing.
func (sl *StructuredLogger) LogCycleFailed(ctx context.Context, seq uint64, err error) {
	fields := NewFields().
		WithCycle(seq).
		WithOperation(OpReconcile).
		WithError(err)
	sl.logger.WarnContext(ctx, "Reconciliation cycle failed, keeping last snapshot", fields.ToSlice()...)
}

// LogAlert logs an alert handed to the notifier.
func (sl *StructuredLogger) LogAlert(ctx context.Context, ev core.AlertEvent) {
	fields := NewFields().
		WithAlert(ev).
		WithOperation(OpNotify)
	sl.logger.InfoContext(ctx, ev.Payload.Title, fields.ToSlice()...)
}

// LogTransaction logs a user-initiated ledger write.
func (sl *StructuredLogger) LogTransaction(ctx context.Context, op, kind string, tx core.Transaction) {
	fields := NewFields().
		WithTransaction(tx).
		WithOperation(op).
		WithComponent(ComponentLedger)
	fields["kind"] = kind
	sl.logger.InfoContext(ctx, "Ledger updated", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation).WithComponent(component)
	sl.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
