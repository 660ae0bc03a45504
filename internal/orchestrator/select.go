// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
)

// ErrSelection is the sentinel error wrapped by SelectionError.
var ErrSelection = errors.New("environment selection failed")

// SelectionError reports a requested environment that the configuration
// does not define. It is fatal for the whole invocation, raised before any
// environment starts materializing.
type SelectionError struct {
	// Name is the unknown requested name or unmatched pattern.
	Name string
	// Available lists the configured environment names.
	Available []string
}

// Error implements the error interface.
func (e *SelectionError) Error() string {
	return fmt.Sprintf("unknown environment %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Unwrap returns ErrSelection for errors.Is detection.
func (e *SelectionError) Unwrap() error { return ErrSelection }

// Select resolves the requested names into the list of environments to
// run. Requests may be exact names or glob patterns; with no request the
// configured default list applies, and with no default list every
// environment runs in declaration order.
func (o *Orchestrator) Select(requested []string) ([]string, error) {
	all := o.File.EnvNames()

	if len(requested) == 0 {
		if len(o.File.DefaultEnvs) > 0 {
			return slices.Clone(o.File.DefaultEnvs), nil
		}
		return all, nil
	}

	var selected []string
	for _, req := range requested {
		if strings.ContainsAny(req, "*?[") {
			matched := false
			for _, name := range all {
				if ok, err := path.Match(req, name); err == nil && ok {
					matched = true
					if !slices.Contains(selected, name) {
						selected = append(selected, name)
					}
				}
			}
			if !matched {
				return nil, &SelectionError{Name: req, Available: all}
			}
			continue
		}
		if !slices.Contains(all, req) {
			return nil, &SelectionError{Name: req, Available: all}
		}
		if !slices.Contains(selected, req) {
			selected = append(selected, req)
		}
	}
	return selected, nil
}
