// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"runtime"
)

type (
	// Config is crucible's tool-level configuration. Zero values defer to
	// the per-project crucible.toml or to built-in defaults.
	Config struct {
		// WorkRoot overrides where environment directories are created.
		// Empty means .crucible next to the loaded crucible.toml.
		WorkRoot string `mapstructure:"work_root"`

		// Parallel is the default worker limit for crucible run --parallel
		// when the flag carries no value. Zero means NumCPU.
		Parallel int `mapstructure:"parallel"`

		// Installer overrides the dependency installer command for every
		// project. Empty means the project's own installer setting.
		Installer []string `mapstructure:"installer"`

		// UI groups output-related settings.
		UI UIConfig `mapstructure:"ui"`
	}

	// UIConfig controls crucible's terminal output.
	UIConfig struct {
		// Verbose enables debug logging and full error chains.
		Verbose bool `mapstructure:"verbose"`
		// Color selects colored output: "auto", "always", or "never".
		Color string `mapstructure:"color"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		UI: UIConfig{Color: "auto"},
	}
}

// EffectiveParallel resolves the configured default worker limit.
func (c *Config) EffectiveParallel() int {
	if c.Parallel > 0 {
		return c.Parallel
	}
	return runtime.NumCPU()
}

// Validate checks constraints the decoder cannot express.
func (c *Config) Validate() error {
	if c.Parallel < 0 {
		return fmt.Errorf("parallel must not be negative, got %d", c.Parallel)
	}
	switch c.UI.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("ui.color must be auto, always, or never, got %q", c.UI.Color)
	}
	if len(c.Installer) == 1 && c.Installer[0] == "" {
		return fmt.Errorf("installer must not be a single empty string")
	}
	return nil
}
