// Package hexlog provides a context key for carrying a single configured
// *log.Logger through a run, plus the constructor that builds it from the
// CLI's level/format flags. It mirrors the context-carrying-logger idiom
// this repository has always used, adapted from log/slog onto
// charmbracelet/log so that Hexmake's diagnostics pick up the pack's
// structured, leveled, colorized output.
package hexlog

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

type key struct{}

var loggerKey = key{}

// New builds a *log.Logger writing to w at the given level, with a fresh
// run ID attached as a permanent field so log lines from concurrent or
// historical invocations can be told apart once concatenated.
func New(w io.Writer, levelStr string, jsonFormat bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Level:           parseLevel(levelStr),
		ReportTimestamp: true,
	})
	if jsonFormat {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger.With("run_id", uuid.New().String())
}

func parseLevel(levelStr string) log.Level {
	switch levelStr {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// WithLogger returns a new context carrying logger.
func WithLogger(ctx context.Context, logger *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger embedded by WithLogger. Every context
// that reaches planner, sandbox, executor, or conductor code must have
// been seeded by the CLI entry point; a missing logger is a programmer
// error, not a runtime condition to recover from.
func FromContext(ctx context.Context) *log.Logger {
	if logger, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return logger
	}
	panic("hexlog: logger missing from context")
}
