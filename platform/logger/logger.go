// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// AutomationFailure logs a failed automation evaluation. Failures are
// isolated: recorded as error executions and logged here, never propagated
// to the lead write.
func (l *Logger) AutomationFailure(automationID, leadID string, err error) {
	l.Error("automation_failure",
		slog.String("automation_id", automationID),
		slog.String("lead_id", leadID),
		slog.String("error", err.Error()),
	)
}

// NotificationFailure logs a failed outbound notification dispatch.
func (l *Logger) NotificationFailure(leadID, channel string, err error) {
	l.Warn("notification_failure",
		slog.String("lead_id", leadID),
		slog.String("channel", channel),
		slog.String("error", err.Error()),
	)
}

// StoreError logs persisted-store errors
func (l *Logger) StoreError(operation string, err error) {
	l.Error("store_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
