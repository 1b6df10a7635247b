// Package logging is the structured logger of the integration runner. It is
// backed by zap; callers only see the Logger interface and Field constructors.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// LogLevel is the minimum severity written
type LogLevel = zapcore.Level

// Levels accepted by LOG_LEVEL
const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

// Logger defines the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// LogConfig holds logger configuration. A nil Output writes to stderr, which
// keeps stdout free for the run report.
type LogConfig struct {
	Level  LogLevel
	Output io.Writer
}

// ParseLevel converts a LOG_LEVEL value, defaulting to InfoLevel
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// NewLogger creates a zap-backed logger
func NewLogger(config LogConfig) Logger {
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	return newZapAdapter(config.Level, output)
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewLogger(LogConfig{Level: InfoLevel})
)

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// InitGlobalLogger configures the global logger. An empty logFile logs to stderr.
// The returned closer releases the log file, if one was opened.
func InitGlobalLogger(level, logFile string) (io.Closer, error) {
	config := LogConfig{Level: ParseLevel(level)}

	var closer io.Closer = nopCloser{}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		config.Output = file
		closer = file
	}

	logger := NewLogger(config)
	SetGlobalLogger(logger)
	logger.Debug("Logger initialized",
		String("level", config.Level.String()),
		String("log_file", logFile),
	)

	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// MustSync flushes buffered entries of the global logger before exit
func MustSync() {
	if s, ok := GetGlobalLogger().(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

// Debug logs a debug message using the global logger
func Debug(msg string, fields ...Field) {
	GetGlobalLogger().Debug(msg, fields...)
}

// Info logs an info message using the global logger
func Info(msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fields...)
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

// Error logs an error message using the global logger
func Error(msg string, err error, fields ...Field) {
	GetGlobalLogger().Error(msg, err, fields...)
}
