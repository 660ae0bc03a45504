// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

// Exit codes for the crucible binary. Configuration and selection problems
// exit 2 so scripts can tell a broken setup from failing environments.
const (
	// ExitFailure is returned when at least one environment failed or errored.
	ExitFailure = 1
	// ExitUsage is returned for configuration, selection, and flag errors.
	ExitUsage = 2
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}
