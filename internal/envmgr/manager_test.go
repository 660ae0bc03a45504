// SPDX-License-Identifier: MPL-2.0

package envmgr

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"crucible-cli/pkg/envfile"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	confDir := t.TempDir()
	return &Manager{
		ConfDir:     confDir,
		WorkRoot:    filepath.Join(confDir, ".crucible"),
		ToolVersion: "test",
	}
}

func isolatedSpec(name string, deps ...string) *envfile.EnvironmentSpec {
	return &envfile.EnvironmentSpec{Name: name, Deps: deps}
}

func TestMaterialize_CreatesIsolatedRoot(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	env, err := m.Materialize(isolatedSpec("tests", "pytest"), []string{"pip", "install"}, "", false)
	if err != nil {
		t.Fatalf("Materialize() unexpected error: %v", err)
	}
	defer env.Close()

	if !env.Recreated {
		t.Errorf("Recreated = false, want true for first materialization")
	}
	if !env.NeedsInstall {
		t.Errorf("NeedsInstall = false, want true for recreated isolated env")
	}
	if env.Dir != filepath.Join(m.WorkRoot, "tests") {
		t.Errorf("Dir = %q, want deterministic per-name path", env.Dir)
	}
	if _, err := os.Stat(env.BinDir); err != nil {
		t.Errorf("BinDir not created: %v", err)
	}
}

func TestMaterialize_FreshEnvironmentIsReused(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	spec := isolatedSpec("tests", "pytest")

	env, err := m.Materialize(spec, nil, "", false)
	if err != nil {
		t.Fatalf("first Materialize() failed: %v", err)
	}
	// Drop a sentinel file, commit the state, release the lock.
	sentinel := filepath.Join(env.Dir, "sentinel")
	if err := os.WriteFile(sentinel, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.CommitState(env); err != nil {
		t.Fatalf("CommitState() failed: %v", err)
	}
	env.Close()

	again, err := m.Materialize(spec, nil, "", false)
	if err != nil {
		t.Fatalf("second Materialize() failed: %v", err)
	}
	defer again.Close()

	if again.Recreated {
		t.Errorf("Recreated = true, want reuse of fresh environment")
	}
	if _, err := os.Stat(sentinel); err != nil {
		t.Errorf("sentinel removed: fresh environment must not be recreated")
	}
}

func TestMaterialize_ForceAlwaysRecreates(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	spec := isolatedSpec("tests", "pytest")

	env, err := m.Materialize(spec, nil, "", false)
	if err != nil {
		t.Fatalf("first Materialize() failed: %v", err)
	}
	sentinel := filepath.Join(env.Dir, "sentinel")
	if err := os.WriteFile(sentinel, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.CommitState(env); err != nil {
		t.Fatalf("CommitState() failed: %v", err)
	}
	env.Close()

	forced, err := m.Materialize(spec, nil, "", true)
	if err != nil {
		t.Fatalf("forced Materialize() failed: %v", err)
	}
	defer forced.Close()

	if !forced.Recreated {
		t.Errorf("Recreated = false, want forced recreation")
	}
	if _, err := os.Stat(sentinel); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("sentinel survived forced recreation")
	}
}

func TestMaterialize_StaleWhenDependencySetChanges(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	env, err := m.Materialize(isolatedSpec("tests", "pytest"), nil, "", false)
	if err != nil {
		t.Fatalf("first Materialize() failed: %v", err)
	}
	if err := m.CommitState(env); err != nil {
		t.Fatalf("CommitState() failed: %v", err)
	}
	env.Close()

	changed, err := m.Materialize(isolatedSpec("tests", "pytest", "coverage"), nil, "", false)
	if err != nil {
		t.Fatalf("second Materialize() failed: %v", err)
	}
	defer changed.Close()

	if !changed.Recreated {
		t.Errorf("Recreated = false, want recreation after dependency set change")
	}
}

func TestMaterialize_RequirementFileContentAffectsFingerprint(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	reqPath := filepath.Join(m.ConfDir, "requirements.txt")
	if err := os.WriteFile(reqPath, []byte("pytest\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	spec := isolatedSpec("tests", "-r requirements.txt")

	env, err := m.Materialize(spec, nil, "", false)
	if err != nil {
		t.Fatalf("first Materialize() failed: %v", err)
	}
	if err := m.CommitState(env); err != nil {
		t.Fatalf("CommitState() failed: %v", err)
	}
	env.Close()

	if err := os.WriteFile(reqPath, []byte("pytest\ncoverage\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	again, err := m.Materialize(spec, nil, "", false)
	if err != nil {
		t.Fatalf("second Materialize() failed: %v", err)
	}
	defer again.Close()

	if !again.Recreated {
		t.Errorf("Recreated = false, want recreation after requirement file edit")
	}
}

func TestMaterialize_NonIsolatedReusesProcessRoot(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	isolated := false
	spec := &envfile.EnvironmentSpec{Name: "lint", Isolated: &isolated}

	env, err := m.Materialize(spec, nil, "", false)
	if err != nil {
		t.Fatalf("Materialize() unexpected error: %v", err)
	}
	defer env.Close()

	if env.Isolated {
		t.Errorf("Isolated = true, want false")
	}
	if env.DepsDir != "" || env.Dir != "" {
		t.Errorf("non-isolated env got isolated paths: dir=%q deps=%q", env.Dir, env.DepsDir)
	}
	if env.NeedsInstall {
		t.Errorf("NeedsInstall = true, want false for non-isolated env")
	}
	if _, err := os.Stat(filepath.Join(m.WorkRoot, "lint")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("non-isolated env created a work root directory")
	}
}

func TestMaterialize_DistinctNamesGetDistinctRoots(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	a, err := m.Materialize(isolatedSpec("py311"), nil, "", false)
	if err != nil {
		t.Fatalf("Materialize(py311) failed: %v", err)
	}
	defer a.Close()

	b, err := m.Materialize(isolatedSpec("py312"), nil, "", false)
	if err != nil {
		t.Fatalf("Materialize(py312) failed: %v", err)
	}
	defer b.Close()

	if a.Dir == b.Dir || a.DepsDir == b.DepsDir {
		t.Errorf("environments share a root: %q vs %q", a.Dir, b.Dir)
	}
}

func TestMaterialize_ChangeDir(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	env, err := m.Materialize(isolatedSpec("tests"), nil, "", false)
	if err != nil {
		t.Fatalf("Materialize() failed: %v", err)
	}
	defer env.Close()
	if env.WorkDir != m.ConfDir {
		t.Errorf("WorkDir = %q, want config dir %q when change_dir is unset", env.WorkDir, m.ConfDir)
	}

	spec := isolatedSpec("docs")
	spec.ChangeDir = "docs/src"
	env2, err := m.Materialize(spec, nil, "", false)
	if err != nil {
		t.Fatalf("Materialize() with change_dir failed: %v", err)
	}
	defer env2.Close()

	want := filepath.Join(m.ConfDir, "docs", "src")
	if env2.WorkDir != want {
		t.Errorf("WorkDir = %q, want %q", env2.WorkDir, want)
	}
	if info, err := os.Stat(env2.WorkDir); err != nil || !info.IsDir() {
		t.Errorf("change_dir working directory not created: %v", err)
	}
}

func TestBuiltins(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	env, err := m.Materialize(isolatedSpec("tests"), nil, "", false)
	if err != nil {
		t.Fatalf("Materialize() failed: %v", err)
	}
	defer env.Close()

	b := env.Builtins(m.ConfDir)
	if b["envname"] != "tests" {
		t.Errorf("builtins[envname] = %q, want %q", b["envname"], "tests")
	}
	if b["envdir"] != env.Dir || b["depsdir"] != env.DepsDir {
		t.Errorf("builtins paths do not match resolved environment: %v", b)
	}
	if b["confdir"] != m.ConfDir {
		t.Errorf("builtins[confdir] = %q, want %q", b["confdir"], m.ConfDir)
	}
}
