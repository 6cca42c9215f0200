// Package clog provides the engine's structured logging, carried as
// ambient stack per SPEC_FULL.md even though the HTTP/metrics
// front-ends that would otherwise own observability are out of scope
// (spec.md §1 Non-goals). The engine logs operation lifecycle events
// (lock acquired/renewed/released, edit committed, ingest layer
// finished) at debug/info; it never logs row payloads.
package clog

import (
	"go.uber.org/zap"
)

// Logger wraps a *zap.Logger with the few fields the engine always
// wants attached: graph id and, once allocated, operation id.
type Logger struct {
	z *zap.Logger
}

// New builds a Logger for the given format ("json" or "console") and
// level ("debug", "info", "warn", "error").
func New(format, level string) (*Logger, error) {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	var lvl zap.AtomicLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = lvl

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z}, nil
}

// Noop returns a Logger that discards everything, for tests.
func Noop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// With returns a child Logger carrying the given graph id.
func (l *Logger) With(graphID string) *Logger {
	return &Logger{z: l.z.With(zap.String("graph_id", graphID))}
}

// WithOperation returns a child Logger carrying an operation id.
func (l *Logger) WithOperation(opID uint64) *Logger {
	return &Logger{z: l.z.With(zap.Uint64("operation_id", opID))}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

// Sync flushes any buffered log entries; call on shutdown.
func (l *Logger) Sync() error { return l.z.Sync() }
