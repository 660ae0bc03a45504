// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"crucible-cli/internal/subst"
)

func testExecutor(t *testing.T) *Executor {
	t.Helper()
	return &Executor{
		EnvName: "tests",
		WorkDir: t.TempDir(),
		Env:     map[string]string{"PATH": "/usr/bin:/bin"},
	}
}

func emptyContext() *subst.Context {
	return &subst.Context{Builtins: map[string]string{}, Vars: map[string]string{}}
}

func TestRun_StrictOrderFailFast(t *testing.T) {
	t.Parallel()

	e := testExecutor(t)
	commands := []string{"true", "false", "true"}

	results := e.Run(context.Background(), commands, emptyContext())
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Failed() {
		t.Errorf("command A failed: %+v", results[0])
	}
	if !results[1].Failed() || results[1].ExitCode != 1 {
		t.Errorf("command B should fail with exit 1: %+v", results[1])
	}
	if !results[2].Skipped {
		t.Errorf("command C ran after a fail-fast failure")
	}
}

func TestRun_KeepGoingRunsEverything(t *testing.T) {
	t.Parallel()

	e := testExecutor(t)
	e.KeepGoing = true
	commands := []string{"sh -c 'exit 3'", "true", "sh -c 'exit 2'"}

	results := e.Run(context.Background(), commands, emptyContext())
	for i, r := range results {
		if r.Skipped {
			t.Errorf("command %d skipped under keep-going", i)
		}
	}
	if got := WorstExit(results); got != 3 {
		t.Errorf("WorstExit() = %d, want 3", got)
	}
}

func TestRun_SubstitutesAndTokenizes(t *testing.T) {
	t.Parallel()

	e := testExecutor(t)
	var stream bytes.Buffer
	e.Stream = &stream

	sctx := emptyContext()
	sctx.Posargs = []string{"hello", "world"}

	results := e.Run(context.Background(), []string{"echo {posargs}"}, sctx)
	if results[0].Failed() {
		t.Fatalf("echo failed: %+v", results[0])
	}
	if want := []string{"echo", "hello", "world"}; len(results[0].Argv) != 3 ||
		results[0].Argv[0] != want[0] || results[0].Argv[1] != want[1] || results[0].Argv[2] != want[2] {
		t.Errorf("Argv = %v, want %v", results[0].Argv, want)
	}
	if !strings.Contains(results[0].Output, "hello world") {
		t.Errorf("captured output = %q, want it to contain %q", results[0].Output, "hello world")
	}
	if !strings.Contains(stream.String(), "hello world") {
		t.Errorf("streamed output = %q, want it to contain %q", stream.String(), "hello world")
	}
}

func TestRun_QuotedArgumentsStayOneToken(t *testing.T) {
	t.Parallel()

	e := testExecutor(t)
	results := e.Run(context.Background(), []string{`echo 'one token'`}, emptyContext())
	if results[0].Failed() {
		t.Fatalf("echo failed: %+v", results[0])
	}
	if len(results[0].Argv) != 2 || results[0].Argv[1] != "one token" {
		t.Errorf("Argv = %v, want quoted argument preserved", results[0].Argv)
	}
}

func TestRun_DisallowedBinaryFailsClosed(t *testing.T) {
	t.Parallel()

	e := testExecutor(t)
	e.Allowlist = []string{"pytest"}

	results := e.Run(context.Background(), []string{"rm -rf /tmp/whatever"}, emptyContext())
	if !results[0].Failed() {
		t.Fatalf("disallowed binary did not fail")
	}
	var ee *ExecutionError
	if !errors.As(results[0].Err, &ee) {
		t.Fatalf("Err is not an *ExecutionError: %v", results[0].Err)
	}
	if ee.Kind != DisallowedBinary {
		t.Errorf("Kind = %q, want %q", ee.Kind, DisallowedBinary)
	}
	if ee.Binary != "rm" {
		t.Errorf("Binary = %q, want %q", ee.Binary, "rm")
	}
	if results[0].Duration != 0 {
		t.Errorf("disallowed command has nonzero duration; it must never spawn")
	}
}

func TestRun_AllowlistMatchesBaseName(t *testing.T) {
	t.Parallel()

	e := testExecutor(t)
	e.Allowlist = []string{"echo"}

	results := e.Run(context.Background(), []string{"/bin/echo ok"}, emptyContext())
	if results[0].Failed() {
		t.Errorf("allow-listed base name rejected: %+v", results[0])
	}
}

func TestRun_EmptyAllowlistIsUnrestricted(t *testing.T) {
	t.Parallel()

	e := testExecutor(t)
	results := e.Run(context.Background(), []string{"true"}, emptyContext())
	if results[0].Failed() {
		t.Errorf("empty allowlist should not restrict: %+v", results[0])
	}
}

func TestRun_UndefinedVariableFailsCommand(t *testing.T) {
	t.Parallel()

	e := testExecutor(t)
	results := e.Run(context.Background(), []string{"echo {nope}"}, emptyContext())
	if !results[0].Failed() {
		t.Fatalf("undefined variable did not fail the command")
	}
	if !errors.Is(results[0].Err, subst.ErrSubstitution) {
		t.Errorf("Err = %v, want wrapped substitution error", results[0].Err)
	}
}

func TestRun_CancelledContextCapturesPartialOutput(t *testing.T) {
	t.Parallel()

	e := testExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan []CommandResult, 1)
	go func() {
		done <- e.Run(ctx, []string{"sh -c 'echo started; sleep 30'"}, emptyContext())
	}()
	time.Sleep(200 * time.Millisecond)
	cancel()

	results := <-done
	if !results[0].Failed() {
		t.Errorf("cancelled command reported success: %+v", results[0])
	}
	if !strings.Contains(results[0].Output, "started") {
		t.Errorf("partial output lost on cancellation: %q", results[0].Output)
	}
}

func TestWorstExit(t *testing.T) {
	t.Parallel()

	results := []CommandResult{
		{ExitCode: 0},
		{ExitCode: 2},
		{ExitCode: -1, Err: errors.New("spawn failed")},
		{ExitCode: -1, Skipped: true},
	}
	if got := WorstExit(results); got != 2 {
		t.Errorf("WorstExit() = %d, want 2", got)
	}
}
