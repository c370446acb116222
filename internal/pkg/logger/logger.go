// Package logger provides structured logging for Realm Steward.
//
// Uses zap with AtomicLevel so the level can be changed at runtime.
// JSON format for production, console for development.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global      *zap.Logger
	atomicLevel = zap.NewAtomicLevel()
	once        sync.Once
	mu          sync.RWMutex
)

// Init initializes the global logger.
// level: debug, info, warn, error
// format: json or console
func Init(level, format string) error {
	var initErr error
	once.Do(func() {
		if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
			initErr = fmt.Errorf("parse log level %q: %w", level, err)
			return
		}

		var cfg zap.Config
		switch format {
		case "console":
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		default:
			cfg = zap.NewProductionConfig()
		}
		cfg.Level = atomicLevel

		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			initErr = fmt.Errorf("build logger: %w", err)
			return
		}
		setGlobal(l)
	})
	return initErr
}

// Replace swaps the global logger. Tests use it with zaptest or zap.NewNop.
func Replace(l *zap.Logger) {
	setGlobal(l)
}

func setGlobal(l *zap.Logger) {
	mu.Lock()
	global = l
	mu.Unlock()
}

// SetLevel dynamically changes the log level.
func SetLevel(level string) error {
	return atomicLevel.UnmarshalText([]byte(level))
}

// Level exposes the atomic level so it can be mounted as an HTTP handler.
func Level() *zap.AtomicLevel {
	return &atomicLevel
}

// L returns the global logger. Before Init it returns a no-op logger so that
// library code never panics in tests.
func L() *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Debug logs a message at DebugLevel.
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

// Info logs a message at InfoLevel.
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn logs a message at WarnLevel.
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error logs a message at ErrorLevel.
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// With creates a child logger with additional fields.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Sync()
}
