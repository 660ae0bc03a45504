// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"

	"crucible-cli/internal/envmgr"
	"crucible-cli/internal/executor"
	"crucible-cli/internal/install"
	"crucible-cli/internal/subst"
	"crucible-cli/pkg/envfile"
)

// Hints maps a crucible error to remediation suggestions for the CLI to
// print alongside it. An empty slice means no suggestion applies.
func Hints(err error) []string {
	var cfgErr *envfile.ConfigError
	if errors.As(err, &cfgErr) {
		return configHints(cfgErr)
	}

	var subErr *subst.SubstitutionError
	if errors.As(err, &subErr) {
		return substitutionHints(subErr)
	}

	var envErr *envmgr.EnvironmentError
	if errors.As(err, &envErr) {
		return environmentHints(envErr)
	}

	var execErr *executor.ExecutionError
	if errors.As(err, &execErr) {
		return executionHints(execErr)
	}

	if errors.Is(err, install.ErrInstall) {
		return []string{
			"Inspect the installer output above for the failing package",
			"Re-run with --recreate to rebuild the environment from scratch",
		}
	}

	return nil
}

func configHints(e *envfile.ConfigError) []string {
	switch e.Kind {
	case envfile.ConfigCyclicInheritance:
		return []string{"Break the cycle by removing one 'base' reference in the chain"}
	case envfile.ConfigUnknownBase:
		return []string{"Declare the referenced environment, or fix the 'base' spelling"}
	case envfile.ConfigDuplicateName:
		return []string{"Rename or merge the duplicated [env.*] sections"}
	default:
		return []string{"Check " + e.Path + " against 'crucible list' for the accepted layout"}
	}
}

func substitutionHints(e *subst.SubstitutionError) []string {
	if e.Kind == subst.UndefinedVariable {
		return []string{
			"Define the variable under set_env, or expose it through pass_env",
			"Use {env:NAME:fallback} to provide a default for optional variables",
		}
	}
	return []string{"Escape literal braces as {{ and }} inside command templates"}
}

func environmentHints(e *envmgr.EnvironmentError) []string {
	if e.Kind == envmgr.PermissionDenied {
		return []string{"Check ownership and permissions of the work root directory"}
	}
	return []string{"Remove the environment directory by hand and re-run with --recreate"}
}

func executionHints(e *executor.ExecutionError) []string {
	if e.Kind == executor.DisallowedBinary {
		return []string{"Add " + e.Binary + " to the environment's allowlist, or clear the allowlist"}
	}
	return []string{"Verify the command's binary is installed and on PATH inside the environment"}
}
