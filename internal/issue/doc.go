// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// It defines an error type carrying the failed operation, the resource
// involved, and remediation suggestions, plus a mapping from crucible's
// error kinds to the suggestions the CLI prints alongside them.
package issue
