// SPDX-License-Identifier: MPL-2.0

package envmgr

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrEnvironment is the sentinel error wrapped by EnvironmentError.
var ErrEnvironment = errors.New("environment materialization failed")

type (
	// ErrorKind classifies materialization failures.
	ErrorKind string

	// EnvironmentError reports a failure to materialize one environment.
	// It is fatal for that environment only, never for the whole run.
	EnvironmentError struct {
		// Kind identifies the failure class.
		Kind ErrorKind
		// Env is the environment being materialized.
		Env string
		// Cause is the underlying filesystem error.
		Cause error
	}
)

// Materialization failure classes.
const (
	// CreationFailed covers directory creation and state I/O failures.
	CreationFailed ErrorKind = "creation failed"
	// PermissionDenied covers failures the OS attributes to permissions.
	PermissionDenied ErrorKind = "permission denied"
)

// Error implements the error interface.
func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("env %q: %s: %v", e.Env, e.Kind, e.Cause)
}

// Unwrap returns ErrEnvironment for errors.Is detection.
func (e *EnvironmentError) Unwrap() error { return ErrEnvironment }

// newEnvError classifies err and wraps it for env.
func newEnvError(env string, err error) *EnvironmentError {
	kind := CreationFailed
	if errors.Is(err, fs.ErrPermission) {
		kind = PermissionDenied
	}
	return &EnvironmentError{Kind: kind, Env: env, Cause: err}
}
