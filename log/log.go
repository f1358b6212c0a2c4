// Package log provides the structured logger used across the service.
// It wraps zerolog behind a small, swappable package-level logger so call
// sites never import zerolog directly.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog's level but keeps the exported API independent of
// the underlying library.
type Level int8

const (
	LogLevelDebug Level = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// logTestWriterName is a sentinel output name recognized by Init: instead of
// opening stdout/stderr/a file, it writes to the package-level logTestWriter,
// which tests can point at an in-memory buffer.
const logTestWriterName = "test"

var (
	mu     sync.RWMutex
	logger zerolog.Logger
	level  = LogLevelInfo

	// logTestWriter is only consulted when Init is called with output ==
	// logTestWriterName. Defaults to stderr so accidental use outside tests
	// is still visible.
	logTestWriter io.Writer = os.Stderr

	// panicOnInvalidChars causes the formatting helpers to panic if the
	// final message contains invalid UTF-8. Off by default; a caller
	// logging arbitrary untrusted bytes should not crash a live service.
	panicOnInvalidChars = false
)

func init() {
	_ = Init("info", "stderr", nil)
}

func levelFromString(s string) Level {
	switch s {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "fatal":
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init (re)configures the package logger. level is one of "debug", "info",
// "warn", "error", "fatal". output is "stdout", "stderr", a file path, or
// the internal "test" sentinel. writer, if non-nil, overrides output
// entirely and is used verbatim as the log destination.
func Init(levelName, output string, writer *io.Writer) error {
	mu.Lock()
	defer mu.Unlock()

	var w io.Writer
	switch {
	case writer != nil:
		w = *writer
	case output == "stdout":
		w = os.Stdout
	case output == "stderr", output == "":
		w = os.Stderr
	case output == logTestWriterName:
		w = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("could not open log output %q: %w", output, err)
		}
		w = f
	}

	level = levelFromString(levelName)
	logger = zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(level.zerolog()).
		With().Timestamp().Logger()
	return nil
}

// Level returns the currently configured minimum log level.
func Level() Level {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

func checkInvalid(msg string) {
	if panicOnInvalidChars && !utf8.ValidString(msg) {
		panic(fmt.Sprintf("log message contains invalid UTF-8: %q", msg))
	}
}

func get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &logger
}

func withFields(ev *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		ev = ev.Interface(key, kv[i+1])
	}
	return ev
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	checkInvalid(msg)
	get().Debug().Msg(msg)
}

// Debugw logs a message with structured key-value pairs at debug level.
func Debugw(msg string, kv ...any) {
	withFields(get().Debug(), kv).Msg(msg)
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	checkInvalid(msg)
	get().Info().Msg(msg)
}

// Infow logs a message with structured key-value pairs at info level.
func Infow(msg string, kv ...any) {
	withFields(get().Info(), kv).Msg(msg)
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	checkInvalid(msg)
	get().Warn().Msg(msg)
}

// Warnw logs a message with structured key-value pairs at warn level.
func Warnw(msg string, kv ...any) {
	withFields(get().Warn(), kv).Msg(msg)
}

// Warn logs an error value at warn level.
func Warn(err error) {
	get().Warn().Msg(err.Error())
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	checkInvalid(msg)
	get().Error().Msg(msg)
}

// Error logs an error value at error level.
func Error(err error) {
	get().Error().Msg(err.Error())
}

// Fatalf logs a formatted message at fatal level and terminates the process.
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	checkInvalid(msg)
	get().Fatal().Msg(msg)
}

// Fatal logs an error value at fatal level and terminates the process.
func Fatal(err error) {
	get().Fatal().Msg(err.Error())
}
