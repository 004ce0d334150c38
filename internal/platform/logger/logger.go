package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Level defaults to info and can be
// raised to debug with BLOODLINK_LOG_LEVEL=debug.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("BLOODLINK_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
