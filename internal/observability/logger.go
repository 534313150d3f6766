// Package observability provides the structured logger shared by every
// component of the hub.
package observability

import (
	"log/slog"
	"os"
)

// logger is the process-wide structured logger, JSON to stdout.
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Logger returns the process-wide logger.
func Logger() *slog.Logger {
	return logger
}

// WithFields returns a logger enriched with the given key/value pairs.
func WithFields(kv ...any) *slog.Logger {
	return logger.With(kv...)
}
