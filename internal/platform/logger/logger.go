package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output so log aggregation stays cheap;
// level comes from config so dev runs can turn on debug.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
