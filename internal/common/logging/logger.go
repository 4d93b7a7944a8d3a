// Package logging is the structured logger shared by every ingestion step.
//
// Callers depend on the Logger interface; the only implementation is backed
// by zap. Run, service and pipeline identifiers travel in the context and are
// attached to entries by WithContext.
package logging

import (
	"context"
	"sync"
	"time"
)

// Field is a key-value pair attached to a log entry
type Field struct {
	Key   string
	Value any
}

// Logger defines the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

type contextKey string

const (
	// RunIDKey carries the workflow run identifier in a context
	RunIDKey contextKey = "run_id"
	// ServiceKey carries the service name being ingested
	ServiceKey contextKey = "service"
	// PipelineKey carries the display name of the pipeline being processed.
	// The FQN is only known once the registry has stored the pipeline.
	PipelineKey contextKey = "pipeline"
)

var contextKeys = []contextKey{RunIDKey, ServiceKey, PipelineKey}

var (
	globalMu     sync.RWMutex
	globalLogger Logger
)

// SetGlobalLogger replaces the process-wide logger
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the process-wide logger, creating a stderr logger
// at info level on first use
func GetGlobalLogger() Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = newZap(Config{})
	}
	return globalLogger
}

// Info logs with the global logger
func Info(msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fields...)
}

// Warn logs with the global logger
func Warn(msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

// Error logs with the global logger
func Error(msg string, err error, fields ...Field) {
	GetGlobalLogger().Error(msg, err, fields...)
}

// WithContext returns the global logger enriched from ctx
func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithFields returns the global logger with extra fields
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
