// Package logx provides leveled, component-prefixed logging for the service.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level identifies the severity of a log line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger writes leveled log lines tagged with a component name.
type Logger struct {
	component string
	logger    *log.Logger
}

// Entry is a captured log line, kept in the in-memory ring for diagnostics.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// ring keeps the most recent log entries so operational endpoints can expose
// them without tailing files.
type ring struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

//nolint:gochecknoglobals // Shared ring buffer mirrors the process-wide log stream
var (
	buffer = &ring{max: 1000}

	debugEnabled = os.Getenv("DEBUG") == "1" || strings.EqualFold(os.Getenv("DEBUG"), "true")
)

// NewLogger creates a logger for the named component.
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stderr, "", 0),
	}
}

// Debug logs a debug-level message. No-op unless DEBUG is set in the environment.
func (l *Logger) Debug(format string, args ...any) {
	if !debugEnabled {
		return
	}
	l.write(LevelDebug, format, args...)
}

// Info logs an info-level message.
func (l *Logger) Info(format string, args ...any) {
	l.write(LevelInfo, format, args...)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(format string, args ...any) {
	l.write(LevelWarn, format, args...)
}

// Error logs an error-level message.
func (l *Logger) Error(format string, args ...any) {
	l.write(LevelError, format, args...)
}

func (l *Logger) write(level Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	ts := time.Now()
	l.logger.Printf("%s [%s] [%s] %s", ts.Format("2006-01-02 15:04:05.000"), level, l.component, msg)

	buffer.mu.Lock()
	defer buffer.mu.Unlock()
	buffer.entries = append(buffer.entries, Entry{
		Timestamp: ts,
		Component: l.component,
		Level:     string(level),
		Message:   msg,
	})
	if len(buffer.entries) > buffer.max {
		buffer.entries = buffer.entries[len(buffer.entries)-buffer.max:]
	}
}

// RecentEntries returns up to n of the most recent log entries, newest last.
func RecentEntries(n int) []Entry {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	if n <= 0 || n > len(buffer.entries) {
		n = len(buffer.entries)
	}
	out := make([]Entry, n)
	copy(out, buffer.entries[len(buffer.entries)-n:])
	return out
}
