// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"fmt"
	"strings"
)

type (
	// File is a parsed crucible.toml document. It is read-only after Load:
	// the orchestrator and the environment manager consume it but never
	// mutate it.
	File struct {
		// DefaultEnvs lists the environments run when the invocation
		// selects none explicitly. Empty means "all, in declaration order".
		DefaultEnvs []string `toml:"default_envs"`

		// Constraints is a constraint file applied uniformly to every
		// isolated install, relative to the configuration directory.
		// Individual environments may override it.
		Constraints string `toml:"constraints"`

		// Installer is the default installer argv (e.g. ["pip", "install"]).
		// Individual environments may override it.
		Installer []string `toml:"installer"`

		// Defaults applies to every environment unless overridden
		// field by field. Its Name and Base fields are ignored.
		Defaults EnvironmentSpec `toml:"defaults"`

		// Envs maps environment name to its specification.
		Envs map[string]*EnvironmentSpec `toml:"env"`

		// FilePath is where the document was loaded from.
		FilePath string `toml:"-"`

		// order holds environment names in declaration order, recovered
		// from the raw document since TOML tables carry no order.
		order []string
	}

	// EnvironmentSpec describes one named environment as written in the
	// configuration, before defaults are overlaid.
	EnvironmentSpec struct {
		// Name is the section name; unique within a File.
		Name string `toml:"-"`
		// Description is free-form text shown by listings and reports.
		Description string `toml:"description"`
		// Base names another environment whose merged spec this one
		// starts from. Must resolve to an existing environment.
		Base string `toml:"base"`
		// Deps are ordered dependency sources: "-r file", "-c file",
		// or an inline package specifier.
		Deps []string `toml:"deps"`
		// SetEnv maps environment-variable names to value templates.
		SetEnv map[string]string `toml:"set_env"`
		// PassEnv lists process environment variables (glob patterns
		// allowed) passed through into command execution.
		PassEnv []string `toml:"pass_env"`
		// Commands are ordered command templates, run in the
		// environment's working directory.
		Commands []string `toml:"commands"`
		// ChangeDir is the working directory for commands, relative to
		// the configuration directory. Empty means the configuration
		// directory itself.
		ChangeDir string `toml:"change_dir"`
		// Allowlist names the external binaries commands may invoke.
		// Empty means unrestricted.
		Allowlist []string `toml:"allowlist"`
		// Isolated selects an isolated dependency root (default true).
		// When false the environment reuses the invoking process's own
		// dependency root and installs nothing.
		Isolated *bool `toml:"isolated"`
		// SkipInstall suppresses the install stage while keeping isolation.
		SkipInstall *bool `toml:"skip_install"`
		// Installer overrides the file-level installer argv.
		Installer []string `toml:"installer"`
		// Constraints overrides the file-level constraint file.
		Constraints string `toml:"constraints"`
	}

	// DepKind discriminates the forms a dependency source can take.
	DepKind string

	// DepSource is one parsed dependency entry.
	DepSource struct {
		// Kind is the entry form.
		Kind DepKind
		// Value is a file path for DepRequirements/DepConstraints,
		// or the package specifier for DepSpec.
		Value string
	}
)

// Dependency entry forms.
const (
	// DepRequirements references a requirement file ("-r path").
	DepRequirements DepKind = "requirements"
	// DepConstraints references a constraint file ("-c path").
	DepConstraints DepKind = "constraints"
	// DepSpec is an inline package specifier.
	DepSpec DepKind = "spec"
)

// IsIsolated reports whether the environment uses an isolated dependency
// root. Unset means isolated.
func (s *EnvironmentSpec) IsIsolated() bool {
	return s.Isolated == nil || *s.Isolated
}

// SkipsInstall reports whether the install stage is suppressed. A
// non-isolated environment never installs regardless of this flag.
func (s *EnvironmentSpec) SkipsInstall() bool {
	if !s.IsIsolated() {
		return true
	}
	return s.SkipInstall != nil && *s.SkipInstall
}

// DepSources parses the environment's dependency entries in declared order.
func (s *EnvironmentSpec) DepSources() ([]DepSource, error) {
	sources := make([]DepSource, 0, len(s.Deps))
	for _, entry := range s.Deps {
		src, err := ParseDep(entry)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// ParseDep parses a single dependency entry. An entry is either a file
// reference ("-r file" or "-c file") or an inline package specifier.
func ParseDep(entry string) (DepSource, error) {
	trimmed := strings.TrimSpace(entry)
	switch {
	case trimmed == "":
		return DepSource{}, fmt.Errorf("empty dependency entry")
	case strings.HasPrefix(trimmed, "-r"):
		path := strings.TrimSpace(strings.TrimPrefix(trimmed, "-r"))
		if path == "" {
			return DepSource{}, fmt.Errorf("dependency entry %q: -r requires a file path", entry)
		}
		return DepSource{Kind: DepRequirements, Value: path}, nil
	case strings.HasPrefix(trimmed, "-c"):
		path := strings.TrimSpace(strings.TrimPrefix(trimmed, "-c"))
		if path == "" {
			return DepSource{}, fmt.Errorf("dependency entry %q: -c requires a file path", entry)
		}
		return DepSource{Kind: DepConstraints, Value: path}, nil
	case strings.HasPrefix(trimmed, "-"):
		return DepSource{}, fmt.Errorf("dependency entry %q: unknown flag", entry)
	default:
		return DepSource{Kind: DepSpec, Value: trimmed}, nil
	}
}

// EnvNames returns environment names in declaration order.
func (f *File) EnvNames() []string {
	names := make([]string, len(f.order))
	copy(names, f.order)
	return names
}

// Env returns the raw (unmerged) spec for name, or nil when absent.
func (f *File) Env(name string) *EnvironmentSpec {
	return f.Envs[name]
}

// InstallerFor returns the installer argv for the environment: the
// environment's own override, or the file-level default.
func (f *File) InstallerFor(spec *EnvironmentSpec) []string {
	if len(spec.Installer) > 0 {
		return spec.Installer
	}
	return f.Installer
}

// ConstraintsFor returns the constraint file for the environment: the
// environment's own override, or the file-level default. Empty means none.
func (f *File) ConstraintsFor(spec *EnvironmentSpec) string {
	if spec.Constraints != "" {
		return spec.Constraints
	}
	return f.Constraints
}
