// Package logctx carries the run logger through contexts and builds the
// process logger that writes the daily log file.
package logctx

import (
	"context"
	"log/slog"
)

// loggerKey is unexported so no other package can overwrite the logger.
type loggerKey struct{}

// WithLogger returns a copy of ctx that carries logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the logger stored by WithLogger, or slog.Default
// when ctx has none.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}
