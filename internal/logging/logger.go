// Package logging builds roost's zap logger.
//
// The terminal belongs to the dashboard, so log output goes to a file.
// When no level is configured logging is silent.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar overrides an empty configured level.
// Valid values: "debug", "info", "warn", "error".
const LogLevelEnvVar = "ROOST_LOG_LEVEL"

// New creates a logger at level writing to path. If level is empty,
// ROOST_LOG_LEVEL is consulted; if that is empty too, a no-op logger is
// returned. An empty path writes to stderr, which the one-shot CLI
// commands use.
func New(level, path string) (*zap.Logger, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = strings.ToLower(strings.TrimSpace(os.Getenv(LogLevelEnvVar)))
	}
	if level == "" {
		return zap.NewNop(), nil
	}

	output := "stderr"
	if path = strings.TrimSpace(path); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		output = path
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{output},
	}
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		// Unknown level - use info when something was explicitly set
		return zapcore.InfoLevel
	}
}
