// SPDX-License-Identifier: MPL-2.0

// Package cmd wires crucible's CLI surface: the run, list, init, and
// config commands, flag handling, and the styled summary output.
package cmd
