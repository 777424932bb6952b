package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"grail/internal/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "default", cfg.Preset)
	require.True(t, cfg.StrictValidation)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grail.yaml")
	require.NoError(t, os.WriteFile(path, []byte("preset: strict\nstrict_validation: false\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "strict", cfg.Preset)
	require.False(t, cfg.StrictValidation)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "grail.yaml")
	cfg := config.Default()
	cfg.ArtifactDir = ".grail"
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, ".grail", loaded.ArtifactDir)
}

func TestResolveLimitsUsesPreset(t *testing.T) {
	cfg := config.Default()
	cfg.Preset = "strict"
	lim, err := cfg.ResolveLimits()
	require.NoError(t, err)
	require.NotNil(t, lim.MaxMemoryBytes)
	require.Equal(t, int64(8*1024*1024), *lim.MaxMemoryBytes)
}
