// SPDX-License-Identifier: MPL-2.0

// Package executor runs an environment's command list in order inside its
// materialized context: substitute, tokenize, check the binary allow-list,
// then execute as a child process, streaming combined output while
// capturing it for the report.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"

	"crucible-cli/internal/subst"
)

// ErrExecution is the sentinel error wrapped by ExecutionError.
var ErrExecution = errors.New("command execution failed")

type (
	// ErrorKind classifies execution failures.
	ErrorKind string

	// ExecutionError reports a command that could not run or was refused.
	// A disallowed binary is a configuration defect and is reported
	// distinctly from a legitimate nonzero exit.
	ExecutionError struct {
		// Kind identifies the failure class.
		Kind ErrorKind
		// Env is the environment the command belongs to.
		Env string
		// Binary is the resolved binary name, for DisallowedBinary.
		Binary string
		// Template is the offending command template.
		Template string
		// Cause is the underlying error, if any.
		Cause error
	}

	// CommandResult is the outcome of one command in the list.
	CommandResult struct {
		// Template is the command as written in the configuration.
		Template string `json:"template"`
		// Argv is the substituted, tokenized argument vector. Empty when
		// the command never reached execution.
		Argv []string `json:"argv,omitempty"`
		// ExitCode is the child's exit code; -1 when it never ran.
		ExitCode int `json:"exit_code"`
		// Duration is how long the child ran.
		Duration time.Duration `json:"duration"`
		// Output is the captured combined stdout/stderr.
		Output string `json:"output,omitempty"`
		// Skipped marks commands never attempted under fail-fast.
		Skipped bool `json:"skipped,omitempty"`
		// Err holds substitution, allow-list, or spawn failures.
		Err error `json:"-"`
		// StartedAt is when the command was launched.
		StartedAt time.Time `json:"started_at"`
	}

	// Executor runs command templates for one resolved environment.
	Executor struct {
		// EnvName is the owning environment, for errors and logs.
		EnvName string
		// WorkDir is the child processes' working directory.
		WorkDir string
		// Env is the fully composed environment variable mapping.
		Env map[string]string
		// Allowlist names the binaries commands may invoke; empty means
		// unrestricted.
		Allowlist []string
		// KeepGoing runs the remaining commands after a failure instead
		// of the default fail-fast behavior.
		KeepGoing bool
		// Stream receives live combined output. Nil keeps output
		// capture-only.
		Stream io.Writer
		// Logger receives per-command progress. Nil disables logging.
		Logger *log.Logger
	}
)

// Execution failure classes.
const (
	// DisallowedBinary marks a resolved binary missing from the allow-list.
	DisallowedBinary ErrorKind = "disallowed binary"
	// SpawnFailed marks substitution, tokenization, or process start failures.
	SpawnFailed ErrorKind = "spawn failed"
)

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	switch e.Kind {
	case DisallowedBinary:
		return fmt.Sprintf("env %q: binary %q is not allow-listed (command %q)", e.Env, e.Binary, e.Template)
	default:
		return fmt.Sprintf("env %q: command %q: %v", e.Env, e.Template, e.Cause)
	}
}

// Unwrap returns ErrExecution for errors.Is detection.
func (e *ExecutionError) Unwrap() error { return ErrExecution }

// Failed reports whether the command counts against the environment.
func (r *CommandResult) Failed() bool {
	return !r.Skipped && (r.Err != nil || r.ExitCode != 0)
}

// Run executes commands in declared order. Under fail-fast (the default)
// the first failure marks the remaining commands skipped; under KeepGoing
// every command runs and the caller derives the worst outcome.
func (e *Executor) Run(ctx context.Context, commands []string, sctx *subst.Context) []CommandResult {
	results := make([]CommandResult, 0, len(commands))
	failed := false

	for _, template := range commands {
		if failed && !e.KeepGoing {
			results = append(results, CommandResult{Template: template, ExitCode: -1, Skipped: true})
			continue
		}
		res := e.runOne(ctx, template, sctx)
		if res.Failed() {
			failed = true
		}
		results = append(results, res)
	}

	return results
}

// runOne substitutes, tokenizes, allow-list checks, and executes a single
// command template.
func (e *Executor) runOne(ctx context.Context, template string, sctx *subst.Context) CommandResult {
	res := CommandResult{Template: template, ExitCode: -1, StartedAt: time.Now()}

	resolved, err := subst.Resolve(template, sctx)
	if err != nil {
		res.Err = &ExecutionError{Kind: SpawnFailed, Env: e.EnvName, Template: template, Cause: err}
		return res
	}

	argv, err := shell.Fields(resolved, func(name string) string { return e.Env[name] })
	if err != nil {
		res.Err = &ExecutionError{Kind: SpawnFailed, Env: e.EnvName, Template: template, Cause: err}
		return res
	}
	if len(argv) == 0 {
		res.Err = &ExecutionError{Kind: SpawnFailed, Env: e.EnvName, Template: template, Cause: errors.New("command resolves to nothing")}
		return res
	}
	res.Argv = argv

	if !e.binaryAllowed(argv[0]) {
		res.Err = &ExecutionError{Kind: DisallowedBinary, Env: e.EnvName, Binary: filepath.Base(argv[0]), Template: template}
		return res
	}

	if e.Logger != nil {
		e.Logger.Info("running command", "env", e.EnvName, "argv", argv)
	}

	var captured bytes.Buffer
	out := io.Writer(&captured)
	if e.Stream != nil {
		out = io.MultiWriter(e.Stream, &captured)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.WorkDir
	cmd.Env = EnvToSlice(e.Env)
	cmd.Stdout = out
	cmd.Stderr = out
	// On cancellation, ask the child to terminate and keep whatever
	// partial output it produced; WaitDelay hard-kills stragglers.
	cmd.Cancel = func() error {
		_ = cmd.Process.Signal(os.Interrupt)
		return nil
	}
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err = cmd.Run()
	res.Duration = time.Since(start)
	res.Output = captured.String()

	switch {
	case err == nil:
		res.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.Err = &ExecutionError{Kind: SpawnFailed, Env: e.EnvName, Template: template, Cause: err}
		}
	}
	return res
}

// binaryAllowed applies the allow-list to the resolved binary. Both the
// bare name and the full invocation path may be listed.
func (e *Executor) binaryAllowed(binary string) bool {
	if len(e.Allowlist) == 0 {
		return true
	}
	return slices.Contains(e.Allowlist, binary) || slices.Contains(e.Allowlist, filepath.Base(binary))
}

// WorstExit returns the highest exit code across results, treating
// unlaunched failures as 1.
func WorstExit(results []CommandResult) int {
	worst := 0
	for i := range results {
		r := &results[i]
		if r.Skipped {
			continue
		}
		code := r.ExitCode
		if r.Err != nil && code <= 0 {
			code = 1
		}
		if code > worst {
			worst = code
		}
	}
	return worst
}
