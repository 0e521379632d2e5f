package config

import (
	"log/slog"
	"os"
	"strings"
)

// SetupLogger configures and returns a structured logger.
// Empty arguments fall back to LOG_LEVEL and LOG_FORMAT.
func SetupLogger(logLevel, logFormat string) *slog.Logger {
	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
	}

	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if logFormat == "" {
		logFormat = os.Getenv("LOG_FORMAT")
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: level,
	}

	if strings.EqualFold(logFormat, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		// Default to JSON for production
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)

	// Set as default logger
	slog.SetDefault(logger)

	return logger
}
