// Package utils holds small helpers shared by the daemon and CLI.
package utils

import (
	"log/slog"
	"os"

	"github.com/wledfleet/wledd/internal/config"
)

// GetLogLevel converts a string log level to slog.Level.
func GetLogLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	case config.LogLevelInfo:
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// ValidateLogLevel ensures the provided level is valid, returning a default if not.
func ValidateLogLevel(level string) string {
	switch level {
	case config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError:
		return level
	default:
		return config.LogLevelInfo
	}
}

// ValidateLogFormat ensures the provided format is valid, returning a default if not.
func ValidateLogFormat(format string) string {
	switch format {
	case config.LogFormatText, config.LogFormatJSON:
		return format
	default:
		return config.LogFormatText
	}
}

// SetupLogger creates a logger writing to stderr with the given level and
// format.
func SetupLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: GetLogLevel(ValidateLogLevel(level))}

	var handler slog.Handler
	if ValidateLogFormat(format) == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// SetupErrorLogger creates a text logger for reporting errors during startup.
func SetupErrorLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// SetAsDefaultLogger sets a logger as the process default.
func SetAsDefaultLogger(logger *slog.Logger) {
	slog.SetDefault(logger)
}
