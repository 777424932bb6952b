package limits_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grail/internal/limits"
)

func TestParseMemory(t *testing.T) {
	bytes, err := limits.ParseMemory("2mb")
	require.NoError(t, err)
	require.Equal(t, int64(2*1024*1024), bytes)
}

func TestParseMemoryInvalid(t *testing.T) {
	_, err := limits.ParseMemory("2 megabytes")
	require.Error(t, err)
}

func TestParseDurationMilliseconds(t *testing.T) {
	d, err := limits.ParseDuration("500ms")
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, d)
}

func TestMergeOverridesOnlySetFields(t *testing.T) {
	base := limits.Default
	overrideDuration := 10 * time.Second
	override := limits.Limits{MaxDuration: &overrideDuration}

	merged := base.Merge(override)
	require.Equal(t, overrideDuration, *merged.MaxDuration)
	require.Equal(t, *base.MaxMemoryBytes, *merged.MaxMemoryBytes)
}

func TestToRuntimeKeyRenames(t *testing.T) {
	rt := limits.Strict.ToRuntime()
	require.NotNil(t, rt.Bytes)
	require.NotNil(t, rt.MaxDurationSecs)
	require.Equal(t, 0.5, *rt.MaxDurationSecs)
	require.NotNil(t, rt.MaxRecursionDepth)
}

func TestPresetByName(t *testing.T) {
	l, ok := limits.PresetByName("strict")
	require.True(t, ok)
	require.Equal(t, *limits.Strict.MaxMemoryBytes, *l.MaxMemoryBytes)

	_, ok = limits.PresetByName("nonexistent")
	require.False(t, ok)
}
