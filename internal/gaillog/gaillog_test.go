package gaillog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grail/internal/gaillog"
)

func TestNewBuildsLogger(t *testing.T) {
	logger, err := gaillog.New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	gaillog.Sync(logger)
}

func TestNewVerboseEnablesDebugLevel(t *testing.T) {
	logger, err := gaillog.New(true)
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(-1)) // zapcore.DebugLevel == -1
	gaillog.Sync(logger)
}

func TestSyncNilLoggerDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() { gaillog.Sync(nil) })
}
