// Package logging builds the root zerolog logger. Components derive their
// own loggers from it with With().Str("component", ...).
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"busalert/internal/config"
)

// New creates a logger configured from config. Supported levels are
// "trace" | "debug" | "info" | "warn" | "error"; an empty or unknown
// level falls back to info.
func New(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	var base zerolog.Logger
	if cfg.Console {
		out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		base = zerolog.New(out).With().Timestamp().Logger()
	} else {
		base = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return base
}

// ParseLevel maps a config level string to a zerolog level, defaulting to
// info. SetGlobalLevel with the result applies a level change at runtime.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
