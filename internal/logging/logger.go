package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger provides leveled, structured logging with redaction support
type Logger struct {
	entry *logrus.Entry
}

// New creates a new logger writing to stderr
func New(debug, noColor bool) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{
		DisableColors: noColor,
		FullTimestamp: true,
	})
	if debug {
		base.SetLevel(logrus.DebugLevel)
	}
	return &Logger{entry: logrus.NewEntry(base)}
}

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	l := New(false, true)
	l.SetOutput(io.Discard)
	return l
}

// SetOutput redirects log output
func (l *Logger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

// SetJSON switches to JSON formatted lines
func (l *Logger) SetJSON() {
	l.entry.Logger.SetFormatter(&logrus.JSONFormatter{})
}

// SetLevel parses and applies a level name such as "debug" or "warn".
// Unknown names leave the level unchanged.
func (l *Logger) SetLevel(level string) {
	if lvl, err := logrus.ParseLevel(strings.TrimSpace(level)); err == nil {
		l.entry.Logger.SetLevel(lvl)
	}
}

// WithField returns a derived logger that adds key=value to every line
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields is WithField for several pairs at once
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
