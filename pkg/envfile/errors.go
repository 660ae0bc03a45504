// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
)

// ErrConfig is the sentinel error wrapped by ConfigError, enabling
// errors.Is checks without inspecting the concrete kind.
var ErrConfig = errors.New("invalid configuration")

type (
	// ConfigErrorKind classifies configuration defects.
	ConfigErrorKind string

	// ConfigError reports a defect in a crucible configuration document.
	// It always carries the file path and, where known, the environment
	// section the defect was found in.
	ConfigError struct {
		// Kind identifies the class of defect.
		Kind ConfigErrorKind
		// Path is the configuration file the defect was found in.
		Path string
		// Env is the environment section involved, if any.
		Env string
		// Detail is a human-readable description with location info.
		Detail string
	}
)

// Configuration defect classes.
const (
	// ConfigMalformed covers syntax errors, unknown keys, empty or
	// untokenizable command templates, and malformed dependency entries.
	ConfigMalformed ConfigErrorKind = "malformed"
	// ConfigCyclicInheritance reports a base chain that loops back on itself.
	ConfigCyclicInheritance ConfigErrorKind = "cyclic inheritance"
	// ConfigDuplicateName reports two environment sections sharing a name.
	ConfigDuplicateName ConfigErrorKind = "duplicate name"
	// ConfigUnknownBase reports a base reference to a missing environment.
	ConfigUnknownBase ConfigErrorKind = "unknown base"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Env != "" {
		return fmt.Sprintf("%s: env %q: %s: %s", e.Path, e.Env, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Kind, e.Detail)
}

// Unwrap returns ErrConfig so callers can use errors.Is for detection.
func (e *ConfigError) Unwrap() error { return ErrConfig }
