// SPDX-License-Identifier: MPL-2.0

// Package envfile defines the crucible configuration model: the TOML
// document describing named test environments, the global defaults they
// inherit, and the overlay rules that merge the two into a runnable
// specification. Parsing is a pure operation; nothing in this package
// touches the filesystem beyond reading the configuration file itself.
package envfile
