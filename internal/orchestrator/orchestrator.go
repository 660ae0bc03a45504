// SPDX-License-Identifier: MPL-2.0

// Package orchestrator drives a crucible invocation: environment
// selection, sequential or bounded-parallel execution of the selected
// environments, and aggregation of per-environment results into a Report
// with a single success/failure verdict.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"crucible-cli/internal/envmgr"
	"crucible-cli/internal/executor"
	"crucible-cli/internal/install"
	"crucible-cli/internal/subst"
	"crucible-cli/pkg/envfile"
)

type (
	// Options are the per-invocation knobs from the CLI.
	Options struct {
		// Parallel is the worker limit; values below 2 mean strictly
		// sequential execution in declaration order.
		Parallel int
		// KeepGoing runs every command of an environment even after one
		// fails, reporting the worst outcome.
		KeepGoing bool
		// Halt cancels in-flight sibling environments when one fails.
		// Off by default: a failed environment does not abort siblings.
		Halt bool
		// Recreate forces environment recreation regardless of staleness.
		Recreate bool
		// Posargs are forwarded to commands via the {posargs} placeholder.
		Posargs []string
	}

	// Orchestrator wires the configuration to the environment manager,
	// installer, and executor. The File and the global defaults inside it
	// are read-only shared state across workers.
	Orchestrator struct {
		// File is the loaded configuration.
		File *envfile.File
		// Manager materializes environment roots.
		Manager *envmgr.Manager
		// NewInstaller builds the installer for an environment's argv.
		// Nil selects the exec-based default.
		NewInstaller func(argv []string) install.Installer
		// Stdout receives streamed command and installer output.
		Stdout io.Writer
		// Logger receives run progress. Nil disables logging.
		Logger *log.Logger
	}
)

// Run executes the requested environments and aggregates their results.
// Only selection errors abort the invocation; anything that goes wrong
// inside one environment lands in its RunResult and never aborts siblings
// (unless opts.Halt is set).
func (o *Orchestrator) Run(ctx context.Context, requested []string, opts Options) (*Report, error) {
	names, err := o.Select(requested)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Results:   make([]RunResult, len(names)),
		StartedAt: time.Now(),
	}
	for i, name := range names {
		report.Results[i] = RunResult{Env: name, Status: StatusPending}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.Parallel > 1 {
		o.runParallel(runCtx, cancel, names, opts, report)
	} else {
		o.runSequential(runCtx, cancel, names, opts, report)
	}

	report.FinishedAt = time.Now()
	return report, nil
}

// runSequential runs environments one at a time in selection order,
// streaming output live.
func (o *Orchestrator) runSequential(ctx context.Context, cancel context.CancelFunc, names []string, opts Options, report *Report) {
	for i, name := range names {
		report.Results[i] = o.runEnv(ctx, name, opts, o.Stdout)
		if opts.Halt && isFailure(report.Results[i].Status) {
			cancel()
		}
	}
}

// runParallel runs environments through a bounded worker pool. Output is
// buffered per environment and flushed on completion so interleaving stays
// readable.
func (o *Orchestrator) runParallel(ctx context.Context, cancel context.CancelFunc, names []string, opts Options, report *Report) {
	var g errgroup.Group
	g.SetLimit(opts.Parallel)

	var mu sync.Mutex
	for i, name := range names {
		g.Go(func() error {
			var buf bytes.Buffer
			result := o.runEnv(ctx, name, opts, &buf)

			mu.Lock()
			report.Results[i] = result
			if o.Stdout != nil {
				_, _ = io.Copy(o.Stdout, &buf)
			}
			mu.Unlock()

			if opts.Halt && isFailure(result.Status) {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// runEnv takes one environment through its full lifecycle. Every error is
// local: it lands in the result and the sibling environments keep going.
func (o *Orchestrator) runEnv(ctx context.Context, name string, opts Options, stream io.Writer) RunResult {
	result := RunResult{Env: name, Status: StatusPending, StartedAt: time.Now()}
	defer func() { result.FinishedAt = time.Now() }()

	finish := func(status Status, err error) RunResult {
		result.Status = status
		result.Err = err
		if err != nil {
			result.Error = err.Error()
		}
		o.logStatus(name, status, err)
		return result
	}

	if ctx.Err() != nil {
		return finish(StatusSkipped, nil)
	}

	spec, err := o.File.Resolve(name)
	if err != nil {
		return finish(StatusErrored, err)
	}
	if len(spec.Commands) == 0 {
		// Nothing to run; filtered out of the verdict.
		return finish(StatusSkipped, nil)
	}

	installerArgv := o.File.InstallerFor(spec)
	constraints := o.File.ConstraintsFor(spec)

	result.Status = StatusMaterializing
	o.logStatus(name, StatusMaterializing, nil)
	env, err := o.Manager.Materialize(spec, installerArgv, constraints, opts.Recreate)
	if err != nil {
		return finish(StatusErrored, err)
	}
	defer env.Close()

	if env.NeedsInstall {
		result.Status = StatusInstalling
		o.logStatus(name, StatusInstalling, nil)
		sources, err := spec.DepSources()
		if err != nil {
			return finish(StatusErrored, err)
		}
		if len(sources) > 0 {
			if err := o.installer(installerArgv).Install(ctx, env, sources, constraints); err != nil {
				// Install failure short-circuits the command list.
				return finish(StatusErrored, err)
			}
		}
	}
	if env.Recreated {
		if err := o.Manager.CommitState(env); err != nil {
			return finish(StatusErrored, err)
		}
	}

	result.Status = StatusRunning
	o.logStatus(name, StatusRunning, nil)

	builtins := env.Builtins(o.Manager.ConfDir)
	lookup := executor.PassEnvLookup(spec.PassEnv)
	sctx := &subst.Context{
		Builtins:  builtins,
		Posargs:   opts.Posargs,
		LookupEnv: lookup,
	}
	vars, err := subst.ResolveVars(spec.SetEnv, sctx)
	if err != nil {
		return finish(StatusErrored, err)
	}
	sctx.Vars = vars

	exports := map[string]string{
		"CRUCIBLE_ENV":     name,
		"CRUCIBLE_ENV_DIR": builtins["envdir"],
		"CRUCIBLE_WORK":    o.Manager.WorkRoot,
	}

	exe := &executor.Executor{
		EnvName:   name,
		WorkDir:   env.WorkDir,
		Env:       executor.ComposeEnv(spec.PassEnv, vars, exports, env.BinDir),
		Allowlist: spec.Allowlist,
		KeepGoing: opts.KeepGoing,
		Stream:    stream,
		Logger:    o.Logger,
	}
	result.Commands = exe.Run(ctx, spec.Commands, sctx)
	result.ExitCode = executor.WorstExit(result.Commands)

	for i := range result.Commands {
		if result.Commands[i].Failed() {
			err := result.Commands[i].Err
			if err == nil {
				err = fmt.Errorf("command %q exited with code %d", result.Commands[i].Template, result.Commands[i].ExitCode)
			}
			return finish(StatusFailed, err)
		}
	}
	return finish(StatusSucceeded, nil)
}

// installer returns the configured installer factory's product, or the
// exec-based default.
func (o *Orchestrator) installer(argv []string) install.Installer {
	if o.NewInstaller != nil {
		return o.NewInstaller(argv)
	}
	inst := install.NewExecInstaller(argv, o.Manager.ConfDir)
	inst.Output = o.Stdout
	inst.Logger = o.Logger
	return inst
}

// isFailure reports whether a terminal status fails the verdict.
func isFailure(s Status) bool {
	return s == StatusFailed || s == StatusErrored
}

// logStatus logs a state transition when a logger is configured.
func (o *Orchestrator) logStatus(env string, status Status, err error) {
	if o.Logger == nil {
		return
	}
	if err != nil {
		o.Logger.Error(string(status), "env", env, "error", err)
		return
	}
	o.Logger.Debug(string(status), "env", env)
}

// IsConfigError reports whether err belongs to the configuration/selection
// class that aborts an invocation before execution.
func IsConfigError(err error) bool {
	return errors.Is(err, envfile.ErrConfig) || errors.Is(err, ErrSelection)
}
