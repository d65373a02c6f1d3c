package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel parses a level string (case-insensitive).
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// sink is shared by a logger and all loggers derived from it with With.
type sink struct {
	mu    sync.RWMutex
	level Level
	out   *log.Logger
}

// Logger is a leveled key/value logger. Loggers created with With share
// level and output with their parent.
type Logger struct {
	sink   *sink
	fields []any
}

// New creates a logger writing to w.
func New(w io.Writer, level Level) *Logger {
	return &Logger{sink: &sink{level: level, out: log.New(w, "", 0)}}
}

var defaultLogger = New(os.Stdout, LevelInfo)

// Default returns the package-level logger.
func Default() *Logger {
	return defaultLogger
}

// With returns a child logger that prefixes every line with kvs.
func (l *Logger) With(kvs ...any) *Logger {
	if len(kvs) < 2 {
		return l
	}
	fields := make([]any, 0, len(l.fields)+len(kvs))
	fields = append(fields, l.fields...)
	fields = append(fields, kvs[:len(kvs)-len(kvs)%2]...)
	return &Logger{sink: l.sink, fields: fields}
}

// SetLevel changes the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// SetOutput changes the writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.out = log.New(w, "", 0)
}

func (l *Logger) enabled(level Level) bool {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	return level >= l.sink.level
}

func (l *Logger) write(line string) {
	l.sink.mu.RLock()
	out := l.sink.out
	l.sink.mu.RUnlock()
	out.Println(line)
}

func (l *Logger) header(b *strings.Builder, level Level, msg string) {
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	fmt.Fprintf(b, "%s [%s] %s", ts, level, msg)
	for i := 0; i+1 < len(l.fields); i += 2 {
		fmt.Fprintf(b, " %v=%v", l.fields[i], l.fields[i+1])
	}
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if !l.enabled(level) {
		return
	}
	var b strings.Builder
	l.header(&b, level, fmt.Sprintf(format, args...))
	l.write(b.String())
}

func (l *Logger) log(level Level, msg string, kvs ...any) {
	if !l.enabled(level) {
		return
	}
	var b strings.Builder
	l.header(&b, level, msg)
	for i := 0; i+1 < len(kvs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kvs[i], kvs[i+1])
	}
	l.write(b.String())
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, kvs ...any) { l.log(LevelDebug, msg, kvs...) }

// Info logs an info message.
func (l *Logger) Info(msg string, kvs ...any) { l.log(LevelInfo, msg, kvs...) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, kvs ...any) { l.log(LevelWarn, msg, kvs...) }

// Error logs an error message.
func (l *Logger) Error(msg string, kvs ...any) { l.log(LevelError, msg, kvs...) }

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...any) { l.logf(LevelInfo, format, args...) }

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...any) { l.logf(LevelWarn, format, args...) }

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }

// Package-level convenience functions.

func SetLevel(level Level)              { defaultLogger.SetLevel(level) }
func SetOutput(w io.Writer)             { defaultLogger.SetOutput(w) }
func With(kvs ...any) *Logger           { return defaultLogger.With(kvs...) }
func Debug(msg string, kvs ...any)      { defaultLogger.Debug(msg, kvs...) }
func Info(msg string, kvs ...any)       { defaultLogger.Info(msg, kvs...) }
func Warn(msg string, kvs ...any)       { defaultLogger.Warn(msg, kvs...) }
func Error(msg string, kvs ...any)      { defaultLogger.Error(msg, kvs...) }
func Infof(format string, args ...any)  { defaultLogger.Infof(format, args...) }
func Warnf(format string, args ...any)  { defaultLogger.Warnf(format, args...) }
func Errorf(format string, args ...any) { defaultLogger.Errorf(format, args...) }
func Debugf(format string, args ...any) { defaultLogger.Debugf(format, args...) }
