package log

import (
	"context"

	"github.com/robfig/cron/v3"
)

// CronLogger adapts Logger to cron.Logger. cron's chatty info records
// (schedule, wake, run) are logged at debug.
type CronLogger struct {
	logger *Logger
}

var _ cron.Logger = CronLogger{}

func NewCronLogger(logger *Logger) CronLogger {
	return CronLogger{logger: logger.WithComponent(ComponentScheduler)}
}

func (c CronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.DebugContext(context.Background(), "cron: "+msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.logger.ErrorContext(context.Background(), "cron: "+msg, append(keysAndValues, FieldError, err)...)
}
