// Package logging provides the leveled structured logger shared by the
// hosting service, the chat client and the CLI.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the minimum severity a Logger emits.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects between JSON lines and human readable output.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options configures a Logger.
type Options struct {
	Level  Level
	Format Format
	// Output is "stdout", "stderr" or a file path. File paths are rotated.
	Output string
	// Writer overrides Output when set.
	Writer io.Writer
}

// Logger wraps zerolog with a fields-map API.
type Logger struct {
	zl     zerolog.Logger
	closer io.Closer
}

var (
	defaultLogger *Logger
	defaultOnce   sync.Once
)

// New builds a Logger from opts.
func New(opts Options) *Logger {
	w, closer := openOutput(opts)

	if opts.Format != FormatJSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}

	zl := zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(opts.Level))
	return &Logger{zl: zl, closer: closer}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Default returns the process-wide logger, configured from SCIWI_LOG_* on first use.
func Default() *Logger {
	defaultOnce.Do(func() {
		if defaultLogger != nil {
			return
		}
		defaultLogger = New(Options{
			Level:  Level(os.Getenv("SCIWI_LOG_LEVEL")),
			Format: Format(os.Getenv("SCIWI_LOG_FORMAT")),
			Output: os.Getenv("SCIWI_LOG_OUTPUT"),
		})
	})
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	defaultOnce.Do(func() {})
	defaultLogger = l
}

func openOutput(opts Options) (io.Writer, io.Closer) {
	if opts.Writer != nil {
		return opts.Writer, nil
	}

	switch strings.ToLower(opts.Output) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		lj := &lumberjack.Logger{
			Filename:   opts.Output,
			MaxSize:    100,
			MaxAge:     14,
			MaxBackups: 10,
		}
		return lj, lj
	}
}

func parseLevel(l Level) zerolog.Level {
	switch Level(strings.ToLower(string(l))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields map[string]any) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields map[string]any) {
	l.zl.Info().Fields(fields).Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields map[string]any) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields map[string]any, err error) {
	l.zl.Error().Fields(fields).Err(err).Msg(msg)
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// Close releases a rotated log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Error logs an error message on the default logger. It is meant for
// failures reported before a configured logger exists.
func Error(msg string, fields map[string]any, err error) {
	Default().Error(msg, fields, err)
}
