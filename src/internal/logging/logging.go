// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options selects log verbosity and output format.
type Options struct {
	// Debug lowers the level from info to debug.
	Debug bool

	// Structured emits JSON lines instead of the human console format.
	Structured bool
}

// New builds a logger writing to w. Logs always go to stderr in the CLI
// so command output on stdout stays machine-parseable.
func New(w io.Writer, opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	if !opts.Structured {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Setup builds the standard CLI logger on stderr.
func Setup(opts Options) zerolog.Logger {
	return New(os.Stderr, opts)
}
