// Package gaillog wires grail's structured logging, grounded on the
// teacher CLI's zap.NewProductionConfig()/PersistentPreRunE lifecycle
// (cmd/nerd/main.go). grail is a library-first tool (the CLI is one of
// several callers of internal/script), so New returns a *zap.Logger
// directly instead of keeping package-level global state.
package gaillog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-profile zap logger, switched to debug level
// when verbose is true — the same knob the teacher's CLI exposes via
// --verbose.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("gaillog: building logger: %w", err)
	}
	return logger, nil
}

// Sync flushes buffered log entries, swallowing the common "sync
// /dev/stderr: invalid argument" error terminals return on some
// platforms — callers run this via defer and have no recovery action to
// take either way.
func Sync(logger *zap.Logger) {
	if logger == nil {
		return
	}
	_ = logger.Sync()
}
