// Package logger builds charmbracelet/log loggers for the tagfilter packages.
//
// Stdout carries the msgpack IPC stream, so every logger writes to stderr.
package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New creates a prefixed charm logger. The global log level, and whether
// timestamps are shown, are read once here, so build loggers after
// log.SetLevel.
func New(prefix string) *log.Logger {
	return NewTo(os.Stderr, prefix)
}

// NewTo is New with an explicit sink, used by tests and the CLI.
func NewTo(w io.Writer, prefix string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		ReportCaller:    false,
		ReportTimestamp: log.GetLevel() == log.DebugLevel,
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})
}
