// SPDX-License-Identifier: MPL-2.0

package envmgr

import (
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"crucible-cli/pkg/envfile"
)

type (
	// Manager materializes environments under a single work root. The
	// per-name directory layout is deterministic, so two environments can
	// never share an isolated root and parallel runs stay disjoint.
	Manager struct {
		// ConfDir is the directory holding the configuration file; file
		// references and the default working directory resolve against it.
		ConfDir string
		// WorkRoot is where environment roots live (default ConfDir/.crucible).
		WorkRoot string
		// ToolVersion is recorded in state markers.
		ToolVersion string
		// Logger receives materialization decisions. Nil disables logging.
		Logger *log.Logger
	}

	// ResolvedEnvironment is the materialized runtime view of one
	// environment: concrete paths, freshness, and the exclusivity lock.
	// Created per run and discarded after; Close must be called when the
	// run finishes with it.
	ResolvedEnvironment struct {
		// Name is the environment name.
		Name string
		// Dir is the environment root (empty for non-isolated environments).
		Dir string
		// DepsDir is the isolated dependency root (empty when not isolated).
		DepsDir string
		// BinDir is the executables directory inside DepsDir, prepended
		// to PATH for command execution (empty when not isolated).
		BinDir string
		// WorkDir is where commands run: the environment's change_dir
		// resolved against the configuration directory, or the
		// configuration directory itself when unset.
		WorkDir string
		// Isolated mirrors the environment's isolated setting.
		Isolated bool
		// Recreated reports whether the root was rebuilt this run.
		Recreated bool
		// NeedsInstall reports whether the install stage must run before
		// commands: true when the root was recreated and installs are wanted.
		NeedsInstall bool
		// Fingerprint is the dependency source set hash computed at
		// materialization; committed to the state marker after install.
		Fingerprint string

		lock *envLock
	}
)

// Materialize creates or reuses the execution context for spec.
// When force is set the environment is recreated regardless of staleness.
func (m *Manager) Materialize(spec *envfile.EnvironmentSpec, installer []string, constraints string, force bool) (*ResolvedEnvironment, error) {
	env := &ResolvedEnvironment{
		Name:     spec.Name,
		WorkDir:  m.ConfDir,
		Isolated: spec.IsIsolated(),
	}
	if spec.ChangeDir != "" {
		env.WorkDir = resolvePath(m.ConfDir, spec.ChangeDir)
		if err := os.MkdirAll(env.WorkDir, 0o755); err != nil {
			return nil, newEnvError(spec.Name, err)
		}
	}

	if !env.Isolated {
		// Administrative/passthrough environment: reuse the invoking
		// process's own dependency root, nothing on disk to manage.
		return env, nil
	}

	env.Dir = filepath.Join(m.WorkRoot, spec.Name)
	env.DepsDir = filepath.Join(env.Dir, "deps")
	env.BinDir = filepath.Join(env.DepsDir, "bin")

	if err := os.MkdirAll(m.WorkRoot, 0o755); err != nil {
		return nil, newEnvError(spec.Name, err)
	}

	lock, err := acquireEnvLock(filepath.Join(m.WorkRoot, spec.Name+".lock"))
	if err != nil {
		return nil, newEnvError(spec.Name, err)
	}
	env.lock = lock

	fingerprint, err := Fingerprint(spec, m.ConfDir, installer, constraints)
	if err != nil {
		lock.Release()
		return nil, newEnvError(spec.Name, err)
	}
	env.Fingerprint = fingerprint

	stale, reason := m.isStale(env.Dir, fingerprint)
	switch {
	case force:
		reason = "recreation forced"
		stale = true
	case !stale:
		m.logf(spec.Name, "reusing environment", "dir", env.Dir)
		return env, nil
	}

	m.logf(spec.Name, "recreating environment", "dir", env.Dir, "reason", reason)
	if err := os.RemoveAll(env.Dir); err != nil {
		lock.Release()
		return nil, newEnvError(spec.Name, err)
	}
	if err := os.MkdirAll(env.BinDir, 0o755); err != nil {
		lock.Release()
		return nil, newEnvError(spec.Name, err)
	}
	env.Recreated = true
	env.NeedsInstall = !spec.SkipsInstall()
	return env, nil
}

// isStale decides whether the environment root must be rebuilt.
func (m *Manager) isStale(dir, fingerprint string) (bool, string) {
	rec, err := readState(dir)
	if err != nil {
		return true, "state marker unreadable"
	}
	if rec == nil {
		return true, "no install marker"
	}
	if rec.Fingerprint != fingerprint {
		return true, "dependency set changed"
	}
	return false, ""
}

// CommitState records a successful install, making the environment fresh
// for subsequent invocations.
func (m *Manager) CommitState(env *ResolvedEnvironment) error {
	if !env.Isolated {
		return nil
	}
	rec := &stateRecord{
		Fingerprint: env.Fingerprint,
		CreatedAt:   time.Now().UTC(),
		ToolVersion: m.ToolVersion,
	}
	if err := writeState(env.Dir, rec); err != nil {
		return newEnvError(env.Name, err)
	}
	return nil
}

// Builtins returns the environment's built-in substitution variables.
// These always win over user definitions.
func (env *ResolvedEnvironment) Builtins(confDir string) map[string]string {
	b := map[string]string{
		"confdir": confDir,
		"envname": env.Name,
	}
	if env.Isolated {
		b["envdir"] = env.Dir
		b["depsdir"] = env.DepsDir
		b["envbindir"] = env.BinDir
	} else {
		b["envdir"] = confDir
		b["depsdir"] = confDir
		b["envbindir"] = ""
	}
	return b
}

// Close releases the environment's exclusivity lock. Safe to call on a
// non-isolated environment and safe to call more than once.
func (env *ResolvedEnvironment) Close() {
	if env.lock != nil {
		env.lock.Release()
		env.lock = nil
	}
}

// logf logs through the manager's logger when one is configured.
func (m *Manager) logf(env, msg string, kv ...any) {
	if m.Logger == nil {
		return
	}
	m.Logger.Debug(msg, append([]any{"env", env}, kv...)...)
}
