// Package logging provides structured logging using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level zerolog.Level
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Pretty enables human-readable console output.
	Pretty bool
}

// Init initializes the global logger with the given configuration.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.Kitchen}
	}

	Logger = zerolog.New(output).
		Level(cfg.Level).
		With().
		Timestamp().
		Logger()
}

// ParseLevel parses a log level string (case-insensitive).
// Returns InfoLevel if the string is not recognized.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Debug starts a new debug level log message.
func Debug() *zerolog.Event { return Logger.Debug() }

// Info starts a new info level log message.
func Info() *zerolog.Event { return Logger.Info() }

// Warn starts a new warn level log message.
func Warn() *zerolog.Event { return Logger.Warn() }

// Error starts a new error level log message.
func Error() *zerolog.Event { return Logger.Error() }

func init() {
	Init(Config{Level: zerolog.InfoLevel})
}
