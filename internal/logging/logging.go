// Package logging constructs the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
)

// New builds a *slog.Logger that writes JSON-structured records to stderr at
// the requested minimum level. Unrecognized levels fall back to info.
func New(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
