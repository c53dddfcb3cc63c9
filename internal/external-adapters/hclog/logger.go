// Package hclog adapts hashicorp/go-hclog to the domain Logger interface.
package hclog

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/ochairo/tfpublish/internal/domain/interfaces"
)

// Options configures a Logger
type Options struct {
	Name   string
	Level  string // trace, debug, info, warn, error; defaults to info
	JSON   bool
	Output io.Writer // defaults to stderr
}

// Logger implements interfaces.Logger on top of an hclog.Logger
type Logger struct {
	inner hclog.Logger
}

// New creates a Logger. An unknown level falls back to info.
func New(opts Options) *Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	level := hclog.LevelFromString(strings.TrimSpace(opts.Level))
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	return &Logger{
		inner: hclog.New(&hclog.LoggerOptions{
			Name:              opts.Name,
			Level:             level,
			Output:            output,
			JSONFormat:        opts.JSON,
			IndependentLevels: true,
		}),
	}
}

// Debug logs debug-level messages
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.inner.Debug(msg, interfaces.KeyValues(fields)...)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.inner.Info(msg, interfaces.KeyValues(fields)...)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.inner.Warn(msg, interfaces.KeyValues(fields)...)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.inner.Error(msg, interfaces.KeyValues(fields)...)
}

// With returns a logger that attaches fields to every message
func (l *Logger) With(fields ...interfaces.Field) interfaces.Logger {
	return &Logger{inner: l.inner.With(interfaces.KeyValues(fields)...)}
}
