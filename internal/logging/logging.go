// Package logging bootstraps the process-wide zerolog logger, grounded on
// the teacher's cmd/cryptorun/main.go console-writer setup.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. level is parsed via
// zerolog.ParseLevel; an unrecognized level falls back to info.
func Init(level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// ForRun returns a logger with the run's correlation id and symbol
// attached to every line, so concurrent diagnose() calls stay
// distinguishable in the process log.
func ForRun(runID, symbol string) zerolog.Logger {
	return log.With().Str("run_id", runID).Str("symbol", symbol).Logger()
}
