// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"crucible-cli/internal/envmgr"
	"crucible-cli/pkg/envfile"
)

// fakeInstaller writes a shell script that appends its arguments to a log
// file and exits with the given code, returning the installer argv and the
// log path.
func fakeInstaller(t *testing.T, exitCode int) ([]string, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	script := filepath.Join(dir, "installer.sh")
	content := "#!/bin/sh\necho \"$@\" >> " + logPath + "\nexit " + strconv.Itoa(exitCode) + "\n"
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	return []string{"sh", script}, logPath
}

func readCalls(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("installer never ran: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func testEnv(t *testing.T) *envmgr.ResolvedEnvironment {
	t.Helper()
	return &envmgr.ResolvedEnvironment{
		Name:     "tests",
		Isolated: true,
		DepsDir:  filepath.Join(t.TempDir(), "deps"),
	}
}

func TestExecInstaller_InstallsSourcesInOrder(t *testing.T) {
	t.Parallel()

	argv, logPath := fakeInstaller(t, 0)
	inst := NewExecInstaller(argv, t.TempDir())

	sources := []envfile.DepSource{
		{Kind: envfile.DepSpec, Value: "pytest>=8"},
		{Kind: envfile.DepSpec, Value: "coverage"},
	}
	env := testEnv(t)

	if err := inst.Install(context.Background(), env, sources, ""); err != nil {
		t.Fatalf("Install() unexpected error: %v", err)
	}

	calls := readCalls(t, logPath)
	if len(calls) != 2 {
		t.Fatalf("got %d installer invocations, want 2 (one per source)", len(calls))
	}
	if !strings.HasPrefix(calls[0], "pytest>=8") || !strings.HasPrefix(calls[1], "coverage") {
		t.Errorf("sources installed out of order: %v", calls)
	}
	for _, call := range calls {
		if !strings.Contains(call, "--target "+env.DepsDir) {
			t.Errorf("invocation missing isolated target: %q", call)
		}
	}
}

func TestExecInstaller_RequirementFilesResolveAgainstConfDir(t *testing.T) {
	t.Parallel()

	argv, logPath := fakeInstaller(t, 0)
	confDir := t.TempDir()
	inst := NewExecInstaller(argv, confDir)

	sources := []envfile.DepSource{{Kind: envfile.DepRequirements, Value: "requirements.txt"}}
	if err := inst.Install(context.Background(), testEnv(t), sources, ""); err != nil {
		t.Fatalf("Install() unexpected error: %v", err)
	}

	calls := readCalls(t, logPath)
	want := "-r " + filepath.Join(confDir, "requirements.txt")
	if !strings.Contains(calls[0], want) {
		t.Errorf("invocation = %q, want it to contain %q", calls[0], want)
	}
}

func TestExecInstaller_ConstraintsApplyUniformly(t *testing.T) {
	t.Parallel()

	argv, logPath := fakeInstaller(t, 0)
	confDir := t.TempDir()
	inst := NewExecInstaller(argv, confDir)

	sources := []envfile.DepSource{
		{Kind: envfile.DepSpec, Value: "pytest"},
		{Kind: envfile.DepConstraints, Value: "extra-pins.txt"},
		{Kind: envfile.DepSpec, Value: "coverage"},
	}

	if err := inst.Install(context.Background(), testEnv(t), sources, "constraints.txt"); err != nil {
		t.Fatalf("Install() unexpected error: %v", err)
	}

	calls := readCalls(t, logPath)
	if len(calls) != 2 {
		t.Fatalf("got %d invocations, want 2 (constraint entries are not installed)", len(calls))
	}
	for _, call := range calls {
		if !strings.Contains(call, "-c "+filepath.Join(confDir, "constraints.txt")) {
			t.Errorf("invocation missing uniform constraint set: %q", call)
		}
		if !strings.Contains(call, "-c "+filepath.Join(confDir, "extra-pins.txt")) {
			t.Errorf("invocation missing source-declared constraint file: %q", call)
		}
	}
}

func TestExecInstaller_FailureShortCircuits(t *testing.T) {
	t.Parallel()

	argv, logPath := fakeInstaller(t, 3)
	inst := NewExecInstaller(argv, t.TempDir())

	sources := []envfile.DepSource{
		{Kind: envfile.DepSpec, Value: "broken-package"},
		{Kind: envfile.DepSpec, Value: "never-reached"},
	}

	err := inst.Install(context.Background(), testEnv(t), sources, "")
	if err == nil {
		t.Fatalf("Install() succeeded, want error")
	}
	if !errors.Is(err, ErrInstall) {
		t.Fatalf("error does not wrap ErrInstall: %v", err)
	}
	var ie *InstallError
	if !errors.As(err, &ie) {
		t.Fatalf("error is not an *InstallError: %v", err)
	}
	if ie.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", ie.ExitCode)
	}
	if ie.Env != "tests" {
		t.Errorf("Env = %q, want %q", ie.Env, "tests")
	}

	calls := readCalls(t, logPath)
	if len(calls) != 1 {
		t.Errorf("got %d invocations, want 1 (failure short-circuits remaining sources)", len(calls))
	}
}

func TestExecInstaller_NoInstallerConfigured(t *testing.T) {
	t.Parallel()

	inst := NewExecInstaller(nil, t.TempDir())
	err := inst.Install(context.Background(), testEnv(t), []envfile.DepSource{{Kind: envfile.DepSpec, Value: "x"}}, "")
	if !errors.Is(err, ErrInstall) {
		t.Fatalf("want ErrInstall for missing installer, got %v", err)
	}
}
