// Package logx wires up structured logging for the ambient parts of
// DMXP (attach/close, the control daemon, the diagnostics server, and
// the CLI). It deliberately stays out of the hot path: ring.Cursors and
// bus.Producer/Consumer never call into this package, since every log
// call costs more than the entire send/receive fast path combined.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Config controls the logger's minimum level and output format.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // human-readable console output instead of JSON
}

// New builds a component-scoped logger. component is attached to every
// event so multi-process deployments can filter by which part of DMXP
// emitted a line (e.g. "bus", "diag", "ctl").
func New(cfg Config, component string) zerolog.Logger {
	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
