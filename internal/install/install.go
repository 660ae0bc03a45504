// SPDX-License-Identifier: MPL-2.0

// Package install resolves dependency sources into an environment's
// isolated root. The package-repository protocol stays behind the
// Installer interface; the default implementation shells out to a
// configured installer binary and treats it as an opaque subprocess.
package install

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"

	"crucible-cli/internal/envmgr"
	"crucible-cli/pkg/envfile"
)

// ErrInstall is the sentinel error wrapped by InstallError.
var ErrInstall = errors.New("dependency install failed")

type (
	// InstallError reports a failed install of one dependency source.
	// It is fatal for the environment (marking it errored) but never for
	// the run. Installs are not retried: resolution and network failures
	// are reported, not silently skipped.
	InstallError struct {
		// Env is the environment being installed into.
		Env string
		// Source is the dependency entry that failed.
		Source string
		// ExitCode is the installer's exit code, -1 when it never ran.
		ExitCode int
		// Output is the installer's captured combined output.
		Output string
		// Cause is the underlying execution error, if any.
		Cause error
	}

	// Installer resolves and installs ordered dependency sources into the
	// environment's isolated root.
	Installer interface {
		Install(ctx context.Context, env *envmgr.ResolvedEnvironment, sources []envfile.DepSource, constraints string) error
	}

	// ExecInstaller shells out to an installer argv (e.g. ["pip", "install"]),
	// one invocation per dependency source in declared order. A configured
	// constraint file is passed uniformly to every invocation without being
	// installed itself. Only the environment's isolated root is mutated:
	// the target flag points every install at the environment's deps dir.
	ExecInstaller struct {
		// Argv is the installer command and base arguments.
		Argv []string
		// ConfDir anchors relative file references.
		ConfDir string
		// TargetFlag is the flag carrying the isolated root (default
		// "--target"). Empty disables target injection for installers
		// that derive the destination from the environment.
		TargetFlag string
		// Output receives the installer's streamed output. Nil discards.
		Output io.Writer
		// Logger receives per-source progress. Nil disables logging.
		Logger *log.Logger
	}
)

// NewExecInstaller returns an ExecInstaller with the default target flag.
func NewExecInstaller(argv []string, confDir string) *ExecInstaller {
	return &ExecInstaller{Argv: argv, ConfDir: confDir, TargetFlag: "--target"}
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("env %q: install %q: %v", e.Env, e.Source, e.Cause)
	}
	return fmt.Sprintf("env %q: install %q: installer exited with code %d", e.Env, e.Source, e.ExitCode)
}

// Unwrap returns ErrInstall for errors.Is detection.
func (e *InstallError) Unwrap() error { return ErrInstall }

// Install processes sources in declared order, stopping at the first
// failure. Constraint entries inside the source list extend the uniform
// constraint set rather than being installed.
func (i *ExecInstaller) Install(ctx context.Context, env *envmgr.ResolvedEnvironment, sources []envfile.DepSource, constraints string) error {
	if len(i.Argv) == 0 {
		return &InstallError{
			Env:      env.Name,
			ExitCode: -1,
			Cause:    errors.New("no installer configured (set installer in crucible.toml)"),
		}
	}

	constraintFiles := make([]string, 0, 1)
	if constraints != "" {
		constraintFiles = append(constraintFiles, i.resolvePath(constraints))
	}
	for _, src := range sources {
		if src.Kind == envfile.DepConstraints {
			constraintFiles = append(constraintFiles, i.resolvePath(src.Value))
		}
	}

	for _, src := range sources {
		if src.Kind == envfile.DepConstraints {
			continue
		}
		if err := i.installOne(ctx, env, src, constraintFiles); err != nil {
			return err
		}
	}
	return nil
}

// installOne runs a single installer invocation for one dependency source.
func (i *ExecInstaller) installOne(ctx context.Context, env *envmgr.ResolvedEnvironment, src envfile.DepSource, constraintFiles []string) error {
	args := append([]string(nil), i.Argv[1:]...)
	switch src.Kind {
	case envfile.DepRequirements:
		args = append(args, "-r", i.resolvePath(src.Value))
	default:
		args = append(args, src.Value)
	}
	for _, cf := range constraintFiles {
		args = append(args, "-c", cf)
	}
	if i.TargetFlag != "" && env.DepsDir != "" {
		args = append(args, i.TargetFlag, env.DepsDir)
	}

	if i.Logger != nil {
		i.Logger.Debug("installing dependency source", "env", env.Name, "source", describeSource(src))
	}

	var buf bytes.Buffer
	out := io.Writer(&buf)
	if i.Output != nil {
		out = io.MultiWriter(i.Output, &buf)
	}

	cmd := exec.CommandContext(ctx, i.Argv[0], args...)
	cmd.Dir = i.ConfDir
	cmd.Env = os.Environ()
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &InstallError{
				Env:      env.Name,
				Source:   describeSource(src),
				ExitCode: exitErr.ExitCode(),
				Output:   buf.String(),
			}
		}
		return &InstallError{
			Env:      env.Name,
			Source:   describeSource(src),
			ExitCode: -1,
			Output:   buf.String(),
			Cause:    err,
		}
	}
	return nil
}

// resolvePath expands a possibly relative file reference against ConfDir.
func (i *ExecInstaller) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(i.ConfDir, path)
}

// describeSource renders a dependency source for logs and errors.
func describeSource(src envfile.DepSource) string {
	switch src.Kind {
	case envfile.DepRequirements:
		return "-r " + src.Value
	case envfile.DepConstraints:
		return "-c " + src.Value
	default:
		return src.Value
	}
}
