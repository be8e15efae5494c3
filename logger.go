package walstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Logger is the logging interface the sender and its supporting
// components depend on, kept deliberately small so it's easy to back
// with slog, zap, or a test double.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	WithContext(ctx context.Context) Logger
	WithFields(keysAndValues ...any) Logger
}

// NoOpLogger discards all log messages.
type NoOpLogger struct{}

var _ Logger = NoOpLogger{}

func (NoOpLogger) Debug(msg string, keysAndValues ...any)   {}
func (NoOpLogger) Info(msg string, keysAndValues ...any)    {}
func (NoOpLogger) Warn(msg string, keysAndValues ...any)    {}
func (NoOpLogger) Error(msg string, keysAndValues ...any)   {}
func (n NoOpLogger) WithContext(ctx context.Context) Logger { return n }
func (n NoOpLogger) WithFields(keysAndValues ...any) Logger { return n }

// StdLogger is a simple logger that writes to stderr. It exists for
// the daemon's zero-config default; anything production-grade should
// supply a SlogAdapter or ZapAdapter instead.
type StdLogger struct {
	level  LogLevel
	writer io.Writer
	fields []any
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(level LogLevel) *StdLogger {
	return &StdLogger{level: level, writer: os.Stderr}
}

func (s *StdLogger) log(level LogLevel, levelStr, msg string, keysAndValues ...any) {
	if level < s.level {
		return
	}
	allFields := append(s.fields, keysAndValues...)
	output := fmt.Sprintf("[%s] %s", levelStr, msg)
	if len(allFields) > 0 {
		output += " {"
		for i := 0; i < len(allFields); i += 2 {
			if i > 0 {
				output += ", "
			}
			if i+1 < len(allFields) {
				output += fmt.Sprintf("%v=%v", allFields[i], allFields[i+1])
			} else {
				output += fmt.Sprintf("%v=<missing>", allFields[i])
			}
		}
		output += "}"
	}
	fmt.Fprintln(s.writer, output)
}

func (s *StdLogger) Debug(msg string, keysAndValues ...any) { s.log(LogLevelDebug, "DEBUG", msg, keysAndValues...) }
func (s *StdLogger) Info(msg string, keysAndValues ...any)  { s.log(LogLevelInfo, "INFO", msg, keysAndValues...) }
func (s *StdLogger) Warn(msg string, keysAndValues ...any)  { s.log(LogLevelWarn, "WARN", msg, keysAndValues...) }
func (s *StdLogger) Error(msg string, keysAndValues ...any) { s.log(LogLevelError, "ERROR", msg, keysAndValues...) }

func (s *StdLogger) WithContext(ctx context.Context) Logger { return s }

func (s *StdLogger) WithFields(keysAndValues ...any) Logger {
	fields := make([]any, len(s.fields)+len(keysAndValues))
	copy(fields, s.fields)
	copy(fields[len(s.fields):], keysAndValues)
	return &StdLogger{level: s.level, writer: s.writer, fields: fields}
}

// SlogAdapter adapts an *slog.Logger to Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

var _ Logger = (*SlogAdapter)(nil)

func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (s *SlogAdapter) Debug(msg string, keysAndValues ...any) { s.logger.Debug(msg, keysAndValues...) }
func (s *SlogAdapter) Info(msg string, keysAndValues ...any)  { s.logger.Info(msg, keysAndValues...) }
func (s *SlogAdapter) Warn(msg string, keysAndValues ...any)  { s.logger.Warn(msg, keysAndValues...) }
func (s *SlogAdapter) Error(msg string, keysAndValues ...any) { s.logger.Error(msg, keysAndValues...) }

func (s *SlogAdapter) WithContext(ctx context.Context) Logger { return s }

func (s *SlogAdapter) WithFields(keysAndValues ...any) Logger {
	return &SlogAdapter{logger: s.logger.With(keysAndValues...)}
}

// createLogger builds the Logger a LogConfig describes, defaulting to
// StdLogger at info level when neither a custom Logger nor Level is set.
// Backend "zap" builds a production zap.Logger the way marketstore's
// utils/log package does, sugared and wrapped in a ZapAdapter; a
// construction failure there falls back to StdLogger rather than
// aborting startup over a logging backend.
func createLogger(config LogConfig) Logger {
	if config.Logger != nil {
		return config.Logger
	}
	if config.Level == "none" || config.Level == "off" {
		return NoOpLogger{}
	}

	level := LogLevelInfo
	switch config.Level {
	case "debug":
		level = LogLevelDebug
	case "warn", "warning":
		level = LogLevelWarn
	case "error":
		level = LogLevelError
	}

	if config.Backend == "zap" {
		if zl, err := newProductionZapLogger(level); err == nil {
			return NewZapAdapter(zl)
		}
	}
	return NewStdLogger(level)
}
