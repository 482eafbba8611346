// Package logger builds the application's zerolog loggers.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a root logger writing to stderr at the given level.
// Format "console" gets a human-readable writer; anything else emits
// JSON lines. Unknown levels fall back to info.
func New(level, format string) zerolog.Logger {
	var w io.Writer = os.Stderr
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything. Used by tests and by
// components constructed without an explicit logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
