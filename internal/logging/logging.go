// Package logging sets up the application's slog loggers: a structured JSON
// logger on stdout, a human-readable logger on stderr, and per-service
// rotating file loggers.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system with structured and human-readable
// loggers. JSON goes to stdout, text to stderr.
func Init() {
	structuredHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceLevelNames,
	})
	structuredLogger = slog.New(structuredHandler)

	humanReadableHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: replaceLevelNames,
	})
	humanReadableLogger = slog.New(humanReadableHandler)

	slog.SetDefault(structuredLogger)
}

// Structured returns the structured JSON logger.
func Structured() *slog.Logger {
	if structuredLogger == nil {
		Init()
	}
	return structuredLogger
}

// HumanReadable returns the human-readable text logger.
func HumanReadable() *slog.Logger {
	if humanReadableLogger == nil {
		Init()
	}
	return humanReadableLogger
}

// File rotation defaults, overridable from configuration before services
// create their loggers.
var (
	rotationMu         sync.RWMutex
	rotationMaxSizeMB  = 100
	rotationMaxBackups = 3
	rotationMaxAgeDays = 28
)

// SetFileRotation overrides the rotation settings used by NewFileLogger.
func SetFileRotation(maxSizeMB, maxBackups, maxAgeDays int) {
	rotationMu.Lock()
	defer rotationMu.Unlock()
	if maxSizeMB > 0 {
		rotationMaxSizeMB = maxSizeMB
	}
	if maxBackups > 0 {
		rotationMaxBackups = maxBackups
	}
	if maxAgeDays > 0 {
		rotationMaxAgeDays = maxAgeDays
	}
}

// NewFileLogger creates a JSON slog.Logger writing to the specified file path
// using lumberjack for rotation. The returned closer flushes and closes the
// underlying file writer.
func NewFileLogger(filePath, serviceName string, level slog.Leveler) (*slog.Logger, func() error, error) {
	// lumberjack doesn't create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	rotationMu.RLock()
	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    rotationMaxSizeMB,
		MaxBackups: rotationMaxBackups,
		MaxAge:     rotationMaxAgeDays,
		Compress:   false,
	}
	rotationMu.RUnlock()

	handler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	logger := slog.New(handler).With("service", serviceName)

	return logger, logWriter.Close, nil
}

// ForService returns a file logger for the named service under logs/, with a
// discard fallback when the file cannot be opened so callers never hold a nil
// logger.
func ForService(serviceName string, level slog.Leveler) (*slog.Logger, func() error) {
	logFilePath := filepath.Join("logs", serviceName+".log")
	logger, closer, err := NewFileLogger(logFilePath, serviceName, level)
	if err != nil {
		fallback := slog.New(slog.DiscardHandler).With("service", serviceName)
		return fallback, func() error { return nil }
	}
	return logger, closer
}
