package app

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a console logger on w at level. An unparsable level
// falls back to info.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().Timestamp().Logger()
}
