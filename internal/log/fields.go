package log

import (
	"errors"
	"time"

	"tally/internal/core"
	"tally/internal/storage"
)

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldOperation    = "operation"
	FieldError        = "error"
	FieldErrorType    = "error_type"
	FieldDuration     = "duration_ms"
	FieldCycleSeq     = "cycle_seq"
	FieldTrigger      = "trigger"
	FieldKey          = "key"
	FieldBudgetID     = "budget_id"
	FieldRuleID       = "rule_id"
	FieldCategory     = "category"
	FieldAmount       = "amount"
	FieldAlertKind    = "alert_kind"
	FieldPercent      = "percent"
	FieldEvents       = "events"
	FieldRollovers    = "rollovers"
	FieldMaterialized = "materialized"
	FieldYear         = "year"
	FieldMonth        = "month"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentOrchestrator = "orchestrator"
	ComponentLedger       = "ledger"
	ComponentStorage      = "storage"
	ComponentCache        = "cache"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentScheduler    = "scheduler"
	ComponentSheets       = "sheets"
	ComponentBackend      = "backend"
	ComponentCLI          = "cli"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpLoad      = "load"
	OpCommit    = "commit"
	OpReconcile = "reconcile"
	OpNotify    = "notify"
	OpExport    = "export"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeStore         = "store_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
)

// ErrorType classifies err for the error_type field.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case storage.IsValidation(err):
		return ErrorTypeValidation
	case errors.Is(err, storage.ErrTimeout):
		return ErrorTypeTimeout
	default:
		return ErrorTypeStore
	}
}

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error and its classification.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = ErrorType(err)
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithCycle(seq uint64) LogFields {
	f[FieldCycleSeq] = seq
	return f
}

func (f LogFields) WithDuration(d time.Duration) LogFields {
	f[FieldDuration] = d.Milliseconds()
	return f
}

// WithAlert adds the fields identifying an alert event.
func (f LogFields) WithAlert(ev core.AlertEvent) LogFields {
	f[FieldAlertKind] = string(ev.Kind)
	if ev.Payload.BudgetID != "" {
		f[FieldBudgetID] = ev.Payload.BudgetID
	}
	if ev.Payload.RuleID != "" {
		f[FieldRuleID] = ev.Payload.RuleID
	}
	if ev.Payload.Category != "" {
		f[FieldCategory] = ev.Payload.Category
	}
	if ev.Payload.Percent != 0 {
		f[FieldPercent] = ev.Payload.Percent
	}
	return f
}

// WithTransaction adds the fields of an expense or income.
func (f LogFields) WithTransaction(tx core.Transaction) LogFields {
	f[FieldAmount] = tx.Amount.String()
	if tx.Category != "" {
		f[FieldCategory] = tx.Category
	}
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
