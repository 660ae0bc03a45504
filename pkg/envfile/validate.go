// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"fmt"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// envNameRe constrains environment names to filesystem-safe tokens, since
// each name becomes a directory under the work root.
var envNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// validate checks structural invariants the TOML decoder cannot express:
// well-formed names, resolvable and acyclic base chains, tokenizable
// command templates, and well-formed dependency entries.
func (f *File) validate() error {
	for _, name := range f.order {
		spec, ok := f.Envs[name]
		if !ok || spec == nil {
			// A scanned section header the decoder produced no body for.
			spec = &EnvironmentSpec{Name: name}
			f.Envs[name] = spec
		}
		if !envNameRe.MatchString(name) {
			return &ConfigError{
				Kind:   ConfigMalformed,
				Path:   f.FilePath,
				Env:    name,
				Detail: "environment name must match " + envNameRe.String(),
			}
		}
		if err := f.validateSpec(spec); err != nil {
			return err
		}
	}

	if err := f.validateSpec(&f.Defaults); err != nil {
		return err
	}

	for _, name := range f.order {
		if err := f.checkBaseChain(name); err != nil {
			return err
		}
	}

	for _, name := range f.DefaultEnvs {
		if _, ok := f.Envs[name]; !ok {
			return &ConfigError{
				Kind:   ConfigMalformed,
				Path:   f.FilePath,
				Detail: fmt.Sprintf("default_envs references unknown environment %q", name),
			}
		}
	}

	return nil
}

// validateSpec checks a single section's commands and dependency entries.
func (f *File) validateSpec(spec *EnvironmentSpec) error {
	for i, cmd := range spec.Commands {
		if strings.TrimSpace(cmd) == "" {
			return &ConfigError{
				Kind:   ConfigMalformed,
				Path:   f.FilePath,
				Env:    spec.Name,
				Detail: fmt.Sprintf("commands[%d] is empty", i),
			}
		}
		if _, err := syntax.NewParser().Parse(strings.NewReader(cmd), ""); err != nil {
			return &ConfigError{
				Kind:   ConfigMalformed,
				Path:   f.FilePath,
				Env:    spec.Name,
				Detail: fmt.Sprintf("commands[%d] is not tokenizable: %v", i, err),
			}
		}
	}
	for i, entry := range spec.Deps {
		if _, err := ParseDep(entry); err != nil {
			return &ConfigError{
				Kind:   ConfigMalformed,
				Path:   f.FilePath,
				Env:    spec.Name,
				Detail: fmt.Sprintf("deps[%d]: %v", i, err),
			}
		}
	}
	return nil
}

// checkBaseChain walks the base references starting at name, rejecting
// unknown targets and cycles.
func (f *File) checkBaseChain(name string) error {
	visited := map[string]bool{name: true}
	current := f.Envs[name]
	for current.Base != "" {
		next, ok := f.Envs[current.Base]
		if !ok {
			return &ConfigError{
				Kind:   ConfigUnknownBase,
				Path:   f.FilePath,
				Env:    current.Name,
				Detail: fmt.Sprintf("base %q does not name an environment", current.Base),
			}
		}
		if visited[current.Base] {
			return &ConfigError{
				Kind:   ConfigCyclicInheritance,
				Path:   f.FilePath,
				Env:    name,
				Detail: fmt.Sprintf("base chain loops through %q", current.Base),
			}
		}
		visited[current.Base] = true
		current = next
	}
	return nil
}
