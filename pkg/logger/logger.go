package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

type Params struct {
	Debug  bool
	Prefix string
}

// New creates a console logger that writes to stderr.
func New(params Params) *log.Logger {
	level := log.InfoLevel
	if params.Debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          params.Prefix,
	})
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
