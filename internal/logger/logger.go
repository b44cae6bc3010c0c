// Package logger provides leveled structured logging backed by zerolog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init initializes the default logger with the specified level and format.
// format is "json" for JSON lines or "text" for human-readable console output.
func Init(level string, format string) {
	InitWithWriter(level, format, os.Stderr)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(level string, format string, w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339

	out := w
	if strings.ToLower(format) == "text" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}

	defaultLogger = zerolog.New(out).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown names mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with a component name, for callers
// that want structured fields instead of printf messages.
func Component(name string) zerolog.Logger {
	return defaultLogger.With().Str("component", name).Logger()
}

func Debug(format string, args ...interface{}) {
	defaultLogger.Debug().Msgf(format, args...)
}

func Info(format string, args ...interface{}) {
	defaultLogger.Info().Msgf(format, args...)
}

func Warn(format string, args ...interface{}) {
	defaultLogger.Warn().Msgf(format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.Error().Msgf(format, args...)
}

func Fatal(format string, args ...interface{}) {
	// zerolog's Fatal level calls os.Exit(1) after writing
	defaultLogger.Fatal().Msgf(format, args...)
}
