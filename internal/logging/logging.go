// Package logging wraps go.uber.org/zap behind the teacher's leveled-call
// API shape (Debug/Info/Warn/Error), so call sites read the same as the
// original pkg/logger singleton while gaining structured fields, levels,
// and sampling for free.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

// Logger is a thin, structured-field-friendly wrapper over *zap.Logger.
type Logger struct {
	z *zap.Logger
}

var (
	instance *Logger
	once     sync.Once
)

// Get returns the process-wide logger, building a production zap config
// the first time it's called.
func Get() *Logger {
	once.Do(func() {
		z, err := zap.NewProduction()
		if err != nil {
			z = zap.NewNop()
		}
		instance = &Logger{z: z}
	})
	return instance
}

// New builds a standalone Logger around an existing *zap.Logger, used by
// tests that want to inject zaptest loggers instead of the singleton.
func New(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

// With returns a child logger with additional fields attached to every
// subsequent call, e.g. the room code for all of one room's log lines.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// Sync flushes any buffered log entries; call during shutdown.
func (l *Logger) Sync() error { return l.z.Sync() }
