// Package logging adapts zerolog to the osapi.Logger interface.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/rs/zerolog"
)

// FormatConsole selects the human-readable zerolog console writer.
const FormatConsole = "console"

// Logger implements osapi.Logger on top of a zerolog.Logger.
type Logger struct {
	logger zerolog.Logger
}

var _ osapi.Logger = (*Logger)(nil)

// New builds a logger writing to out. Unknown or empty levels fall back to
// info; format "console" uses zerolog.ConsoleWriter, anything else JSON.
func New(level, format string, out io.Writer) *Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}

	if format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return NewZerolog(zerolog.New(out).Level(parsed).With().Timestamp().Logger())
}

// NewZerolog wraps an existing zerolog logger.
func NewZerolog(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// Debug implements osapi.Logger.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug().Fields(fields).Msg(msg)
}

// Info implements osapi.Logger.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info().Fields(fields).Msg(msg)
}

// Warn implements osapi.Logger.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn().Fields(fields).Msg(msg)
}

// Error implements osapi.Logger.
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error().Fields(fields).Msg(msg)
}
