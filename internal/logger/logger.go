// Package logger provides structured JSON logging and run counters for the
// monitor. Each log line is a single JSON object with a timestamp, level,
// message and optional structured fields, so cron output stays parseable.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Fields carries structured log fields.
type Fields map[string]interface{}

type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Fields    Fields `json:"fields,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Logger writes structured log entries at or above a minimum level.
type Logger struct {
	mu       sync.Mutex
	minLevel Level
	out      io.Writer
}

// New creates a logger writing to out. Messages below level are discarded.
func New(level Level, out io.Writer) *Logger {
	return &Logger{minLevel: level, out: out}
}

var (
	defaultMu sync.RWMutex
	defaultL  = New(LevelInfo, os.Stderr)
)

// SetDefault replaces the package-level logger used by the convenience
// functions.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultL = l
	defaultMu.Unlock()
}

func std() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultL
}

func (l *Logger) log(level Level, msg string, fields Fields, err error) {
	if levelRank[level] < levelRank[l.minLevel] {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   msg,
		Fields:    fields,
	}
	if err != nil {
		e.Error = err.Error()
	}

	data, marshalErr := json.Marshal(e)

	l.mu.Lock()
	defer l.mu.Unlock()
	if marshalErr != nil {
		fmt.Fprintf(l.out, "[%s] %s: %s (marshal error: %v)\n", e.Timestamp, e.Level, e.Message, marshalErr)
		return
	}
	fmt.Fprintln(l.out, string(data))
}

// Debug logs diagnostic detail.
func (l *Logger) Debug(msg string, fields Fields) { l.log(LevelDebug, msg, fields, nil) }

// Info logs operational information.
func (l *Logger) Info(msg string, fields Fields) { l.log(LevelInfo, msg, fields, nil) }

// Warn logs a degraded but non-fatal condition.
func (l *Logger) Warn(msg string, fields Fields) { l.log(LevelWarn, msg, fields, nil) }

// Error logs a failure with its error.
func (l *Logger) Error(msg string, fields Fields, err error) { l.log(LevelError, msg, fields, err) }

// Debug logs to the default logger.
func Debug(msg string, fields Fields) { std().Debug(msg, fields) }

// Info logs to the default logger.
func Info(msg string, fields Fields) { std().Info(msg, fields) }

// Warn logs to the default logger.
func Warn(msg string, fields Fields) { std().Warn(msg, fields) }

// Error logs to the default logger.
func Error(msg string, fields Fields, err error) { std().Error(msg, fields, err) }

// Counters is a thread-safe set of named run counters (events discovered,
// fetch failures, snapshots purged, ...).
type Counters struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{counts: make(map[string]int64)}
}

// Incr adds 1 to the named counter.
func (c *Counters) Incr(name string) {
	c.Add(name, 1)
}

// Add adds n to the named counter.
func (c *Counters) Add(name string, n int64) {
	c.mu.Lock()
	c.counts[name] += n
	c.mu.Unlock()
}

// Snapshot returns a copy of all counters, suitable for a log field.
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
