// Package logging constructs the process logger. Every component receives
// the *zap.Logger explicitly; the atomic level lets the config watcher
// change verbosity at runtime.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps the CLI level names onto zap levels. "trace" is accepted
// as an alias for debug; zap has no finer level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "trace", "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// New builds a production-encoded logger at the given level and returns it
// together with the atomic level handle.
func New(level string) (*zap.Logger, zap.AtomicLevel, error) {
	parsed, err := ParseLevel(level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	atomic := zap.NewAtomicLevelAt(parsed)

	cfg := zap.NewProductionConfig()
	cfg.Level = atomic
	cfg.DisableStacktrace = true
	if level == "trace" {
		cfg.Development = true
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("build logger: %w", err)
	}
	return logger, atomic, nil
}
