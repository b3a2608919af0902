package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the text slog logger used by the server. Accepts levels
// debug, info, warn and error; anything else logs at info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel}))
}
