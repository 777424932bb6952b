// Package config loads grail's CLI/runtime configuration from an optional
// YAML file, grounded on the teacher's internal/config.Load pattern
// (DefaultConfig + yaml.Unmarshal + environment overrides) but scoped to
// grail's own concerns instead of the teacher's LLM/shard settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"grail/internal/limits"
)

// Config is grail's top-level configuration shape.
type Config struct {
	// ArtifactDir is where Load/Check write per-script artifact
	// directories. Empty disables artifact writing.
	ArtifactDir string `yaml:"artifact_dir,omitempty"`

	// Preset names one of limits.Strict/Default/Permissive; Limits, if
	// any field is set, overrides individual fields on top of it.
	Preset string        `yaml:"preset,omitempty"`
	Limits limits.Config `yaml:"limits,omitempty"`

	// StrictValidation mirrors ScriptBundle.Run's strict_validation
	// default (spec.md §4.8): unknown inputs/externals raise instead of
	// warn.
	StrictValidation bool `yaml:"strict_validation,omitempty"`

	// LogLevel is "info" or "debug". It is read from the file and from
	// GRAIL_LOG_LEVEL and saved back; the CLI sets its logger level from
	// --verbose only and does not consult it.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns grail's baked-in defaults, used when no config file is
// present.
func Default() Config {
	return Config{
		Preset:           "default",
		StrictValidation: true,
		LogLevel:         "info",
	}
}

// Load reads a YAML config file at path, falling back to Default() if the
// file does not exist. A malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func (c Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// ResolveLimits merges the configured preset with any explicit field
// overrides, falling back to limits.Default if the preset name is
// unrecognized.
func (c Config) ResolveLimits() (limits.Limits, error) {
	base, ok := limits.PresetByName(c.Preset)
	if !ok {
		base = limits.Default
	}
	override, err := c.Limits.Resolve()
	if err != nil {
		return limits.Limits{}, err
	}
	return base.Merge(override), nil
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("GRAIL_ARTIFACT_DIR"); dir != "" {
		c.ArtifactDir = dir
	}
	if preset := os.Getenv("GRAIL_PRESET"); preset != "" {
		c.Preset = preset
	}
	if level := os.Getenv("GRAIL_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}
