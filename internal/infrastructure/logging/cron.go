package logging

import (
	"github.com/robfig/cron/v3"
)

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	l *Logger
}

// CronLogger returns a cron.Logger that writes through l.
// Cron's own Info chatter (schedule, wake, run) is demoted to debug.
func CronLogger(l *Logger) cron.Logger {
	return cronLogger{l: l.With("component", "cron")}
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
