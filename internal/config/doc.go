// SPDX-License-Identifier: MPL-2.0

// Package config handles tool-level configuration for crucible: the user's
// own defaults (work root, parallelism, installer command, verbosity) as
// opposed to the per-project crucible.toml, which pkg/envfile owns.
//
// Configuration is loaded with Viper from config.toml in the platform
// config directory, with every value overridable per invocation by CLI
// flags.
package config
