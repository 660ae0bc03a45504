// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"maps"
	"slices"
)

// Resolve produces the environment's effective specification: global
// defaults, then each ancestor in the base chain (root first), then the
// environment's own section, overlaid field by field. Command lists are
// the exception: the nearest section that defines any commands replaces
// everything inherited.
func (f *File) Resolve(name string) (*EnvironmentSpec, error) {
	spec, ok := f.Envs[name]
	if !ok {
		return nil, &ConfigError{
			Kind:   ConfigMalformed,
			Path:   f.FilePath,
			Env:    name,
			Detail: "unknown environment",
		}
	}

	// Base chains are validated acyclic at load time, so this terminates.
	chain := []*EnvironmentSpec{spec}
	for current := spec; current.Base != ""; {
		current = f.Envs[current.Base]
		chain = append(chain, current)
	}

	merged := overlay(&EnvironmentSpec{}, &f.Defaults)
	for i := len(chain) - 1; i >= 0; i-- {
		merged = overlay(merged, chain[i])
	}
	merged.Name = name
	merged.Base = spec.Base
	return merged, nil
}

// overlay applies over on top of base, returning a new spec. Scalars and
// command lists replace when set; list fields append (base first, duplicates
// dropped); set_env merges key-wise with over winning.
func overlay(base, over *EnvironmentSpec) *EnvironmentSpec {
	out := &EnvironmentSpec{
		Name:        base.Name,
		Description: base.Description,
		Deps:        slices.Clone(base.Deps),
		PassEnv:     slices.Clone(base.PassEnv),
		Allowlist:   slices.Clone(base.Allowlist),
		Commands:    slices.Clone(base.Commands),
		ChangeDir:   base.ChangeDir,
		Installer:   slices.Clone(base.Installer),
		Constraints: base.Constraints,
		Isolated:    base.Isolated,
		SkipInstall: base.SkipInstall,
		SetEnv:      maps.Clone(base.SetEnv),
	}

	if over.Description != "" {
		out.Description = over.Description
	}
	out.Deps = appendUnique(out.Deps, over.Deps)
	out.PassEnv = appendUnique(out.PassEnv, over.PassEnv)
	out.Allowlist = appendUnique(out.Allowlist, over.Allowlist)
	if len(over.Commands) > 0 {
		out.Commands = slices.Clone(over.Commands)
	}
	if over.ChangeDir != "" {
		out.ChangeDir = over.ChangeDir
	}
	if len(over.Installer) > 0 {
		out.Installer = slices.Clone(over.Installer)
	}
	if over.Constraints != "" {
		out.Constraints = over.Constraints
	}
	if over.Isolated != nil {
		out.Isolated = over.Isolated
	}
	if over.SkipInstall != nil {
		out.SkipInstall = over.SkipInstall
	}
	if len(over.SetEnv) > 0 {
		if out.SetEnv == nil {
			out.SetEnv = make(map[string]string, len(over.SetEnv))
		}
		maps.Copy(out.SetEnv, over.SetEnv)
	}

	return out
}

// appendUnique appends items from add that base does not already contain,
// preserving declared order.
func appendUnique(base, add []string) []string {
	for _, item := range add {
		if !slices.Contains(base, item) {
			base = append(base, item)
		}
	}
	return base
}
