package observability

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// StandardLogger is the zerolog backed Logger used by the services.
type StandardLogger struct {
	prefix string
	level  LogLevel
	zl     zerolog.Logger
}

// NewLogger creates a logger writing human readable output to stderr
func NewLogger(prefix string) Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return NewLoggerWithWriter(prefix, output)
}

// NewLoggerWithLevel creates a stderr logger that drops entries below level
func NewLoggerWithLevel(prefix string, level LogLevel) Logger {
	return NewLogger(prefix).(*StandardLogger).WithLevel(level)
}

// NewLoggerWithWriter creates a logger writing JSON lines to w
func NewLoggerWithWriter(prefix string, w io.Writer) *StandardLogger {
	return &StandardLogger{
		prefix: prefix,
		level:  LogLevelInfo,
		zl:     zerolog.New(w).With().Timestamp().Logger(),
	}
}

// WithLevel returns a new logger with the specified log level
func (l *StandardLogger) WithLevel(level LogLevel) *StandardLogger {
	return &StandardLogger{
		prefix: l.prefix,
		level:  level,
		zl:     l.zl,
	}
}

// Debug logs a debug message
func (l *StandardLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(LogLevelDebug, msg, fields)
}

// Info logs an info message
func (l *StandardLogger) Info(msg string, fields map[string]interface{}) {
	l.log(LogLevelInfo, msg, fields)
}

// Warn logs a warning message
func (l *StandardLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(LogLevelWarn, msg, fields)
}

// Error logs an error message
func (l *StandardLogger) Error(msg string, fields map[string]interface{}) {
	l.log(LogLevelError, msg, fields)
}

// Fatal logs a fatal message and exits
func (l *StandardLogger) Fatal(msg string, fields map[string]interface{}) {
	l.log(LogLevelFatal, msg, fields)
	os.Exit(1)
}

// Debugf logs a formatted debug message
func (l *StandardLogger) Debugf(format string, args ...interface{}) {
	l.log(LogLevelDebug, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted info message
func (l *StandardLogger) Infof(format string, args ...interface{}) {
	l.log(LogLevelInfo, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *StandardLogger) Warnf(format string, args ...interface{}) {
	l.log(LogLevelWarn, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *StandardLogger) Errorf(format string, args ...interface{}) {
	l.log(LogLevelError, fmt.Sprintf(format, args...), nil)
}

// Fatalf logs a formatted fatal message and exits
func (l *StandardLogger) Fatalf(format string, args ...interface{}) {
	l.log(LogLevelFatal, fmt.Sprintf(format, args...), nil)
	os.Exit(1)
}

// WithPrefix returns a new logger with the given prefix
func (l *StandardLogger) WithPrefix(prefix string) Logger {
	return &StandardLogger{
		prefix: prefix,
		level:  l.level,
		zl:     l.zl,
	}
}

// With returns a logger that attaches fields to every entry
func (l *StandardLogger) With(fields map[string]interface{}) Logger {
	return &StandardLogger{
		prefix: l.prefix,
		level:  l.level,
		zl:     l.zl.With().Fields(fields).Logger(),
	}
}

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
	LogLevelFatal: 4,
}

func (l *StandardLogger) levelEnabled(level LogLevel) bool {
	return levelRank[level] >= levelRank[l.level]
}

func (l *StandardLogger) log(level LogLevel, msg string, fields map[string]interface{}) {
	if !l.levelEnabled(level) {
		return
	}

	var event *zerolog.Event
	switch level {
	case LogLevelDebug:
		event = l.zl.Debug()
	case LogLevelInfo:
		event = l.zl.Info()
	case LogLevelWarn:
		event = l.zl.Warn()
	case LogLevelError:
		event = l.zl.Error()
	default:
		// WithLevel keeps zerolog from exiting so Fatal owns the exit
		event = l.zl.WithLevel(zerolog.FatalLevel)
	}

	if l.prefix != "" {
		event = event.Str("component", l.prefix)
	}
	if len(fields) > 0 {
		event = event.Fields(fields)
	}
	event.Msg(msg)
}
