// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"time"

	"crucible-cli/internal/executor"
)

type (
	// Status is an environment's position in its lifecycle. Every
	// environment moves Pending → Materializing → Installing → Running
	// and ends in exactly one terminal status.
	Status string

	// RunResult is the immutable per-environment outcome.
	RunResult struct {
		// Env is the environment name.
		Env string `json:"env"`
		// Status is the terminal status.
		Status Status `json:"status"`
		// Commands holds per-command outcomes in declared order.
		Commands []executor.CommandResult `json:"commands,omitempty"`
		// ExitCode is the worst command exit code: 0 when every command
		// succeeded, meaningful mostly under keep-going mode.
		ExitCode int `json:"exit_code"`
		// Error describes the failure for Errored/Failed results.
		Error string `json:"error,omitempty"`
		// StartedAt and FinishedAt bound the environment's run.
		StartedAt  time.Time `json:"started_at"`
		FinishedAt time.Time `json:"finished_at"`

		// Err is the structured error behind Error, for callers that
		// inspect kinds.
		Err error `json:"-"`
	}

	// Report covers one whole invocation. Owned by the orchestrator and
	// immutable once produced.
	Report struct {
		// Results holds one entry per selected environment, in
		// selection order.
		Results []RunResult `json:"results"`
		// StartedAt and FinishedAt bound the invocation.
		StartedAt  time.Time `json:"started_at"`
		FinishedAt time.Time `json:"finished_at"`
	}
)

// Environment lifecycle states.
const (
	StatusPending       Status = "pending"
	StatusMaterializing Status = "materializing"
	StatusInstalling    Status = "installing"
	StatusRunning       Status = "running"
	StatusSucceeded     Status = "succeeded"
	StatusFailed        Status = "failed"
	StatusErrored       Status = "errored"
	StatusSkipped       Status = "skipped"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusErrored, StatusSkipped:
		return true
	}
	return false
}

// Succeeded is the aggregate verdict: failure if any selected environment
// ended Failed or Errored. Skipped environments never affect the verdict.
func (r *Report) Succeeded() bool {
	for i := range r.Results {
		switch r.Results[i].Status {
		case StatusFailed, StatusErrored:
			return false
		}
	}
	return true
}
