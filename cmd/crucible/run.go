// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"crucible-cli/internal/envmgr"
	"crucible-cli/internal/orchestrator"
)

var (
	runEnvs       []string
	runParallel   int
	runKeepGoing  bool
	runHalt       bool
	runRecreate   bool
	runResultJSON string

	// runCmd executes the selected environments
	runCmd = &cobra.Command{
		Use:   "run [environments...] [-- posargs...]",
		Short: "Run the selected environments",
		Long: `Run the selected environments from the project's crucible.toml.

Environments may be named exactly or matched with glob patterns. Without
arguments the project's default_envs list runs; without that list, every
environment runs in declaration order.

Arguments after -- are forwarded to commands via the {posargs} placeholder.

Examples:
  crucible run                     Run the default environments
  crucible run lint tests          Run two environments sequentially
  crucible run -p 4 'py3*'         Run matching environments in parallel
  crucible run tests -- -k auth    Forward '-k auth' to the test commands`,
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().StringSliceVarP(&runEnvs, "env", "e", nil, "environment name or pattern to run (repeatable, adds to positionals)")
	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 1, "number of environments to run concurrently (0 = one per CPU)")
	runCmd.Flags().BoolVarP(&runKeepGoing, "keep-going", "k", false, "run all commands of an environment even after one fails")
	runCmd.Flags().BoolVar(&runHalt, "halt", false, "cancel remaining environments when one fails")
	runCmd.Flags().BoolVarP(&runRecreate, "recreate", "r", false, "recreate environments regardless of staleness")
	runCmd.Flags().StringVar(&runResultJSON, "result-json", "", "write the full run report to this file as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	requested, posargs := splitPosargs(cmd, args)
	requested = append(requested, runEnvs...)

	f, err := loadProjectFile()
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("%s", formatErrorForDisplay(err, verbose))}
	}

	if len(toolCfg.Installer) > 0 {
		// Tool-level installer override; per-environment installers still win.
		f.Installer = toolCfg.Installer
	}

	o := &orchestrator.Orchestrator{
		File:    f,
		Manager: newManager(f.FilePath),
		Stdout:  os.Stdout,
		Logger:  newLogger(),
	}

	parallel := runParallel
	if parallel == 0 {
		parallel = toolCfg.EffectiveParallel()
	}

	report, err := o.Run(cmd.Context(), requested, orchestrator.Options{
		Parallel:  parallel,
		KeepGoing: runKeepGoing,
		Halt:      runHalt,
		Recreate:  runRecreate,
		Posargs:   posargs,
	})
	if err != nil {
		code := ExitFailure
		if orchestrator.IsConfigError(err) {
			code = ExitUsage
		}
		return &ExitError{Code: code, Err: fmt.Errorf("%s", formatErrorForDisplay(err, verbose))}
	}

	if runResultJSON != "" {
		if err := writeResultJSON(report, runResultJSON); err != nil {
			return &ExitError{Code: ExitFailure, Err: err}
		}
	}

	printSummary(report)

	if !report.Succeeded() {
		return &ExitError{Code: ExitFailure}
	}
	return nil
}

// splitPosargs separates environment selectors from the posargs that follow
// a -- terminator.
func splitPosargs(cmd *cobra.Command, args []string) (requested, posargs []string) {
	if at := cmd.ArgsLenAtDash(); at >= 0 {
		return args[:at], args[at:]
	}
	return args, nil
}

// newManager builds the environment manager rooted next to the project file.
func newManager(projectPath string) *envmgr.Manager {
	confDir := filepath.Dir(projectPath)
	workRoot := toolCfg.WorkRoot
	if workRoot == "" {
		workRoot = filepath.Join(confDir, ".crucible")
	}
	return &envmgr.Manager{
		ConfDir:     confDir,
		WorkRoot:    workRoot,
		ToolVersion: Version,
		Logger:      newLogger(),
	}
}

// writeResultJSON persists the machine-readable run report.
func writeResultJSON(report *orchestrator.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write result report: %w", err)
	}
	return nil
}

// printSummary renders the per-environment outcome table and the verdict.
func printSummary(report *orchestrator.Report) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("summary"))

	for i := range report.Results {
		r := &report.Results[i]
		line := fmt.Sprintf("  %s %s", statusGlyph(r.Status), EnvStyle.Render(r.Env))
		if r.Status.Terminal() && r.Status != orchestrator.StatusSkipped {
			line += SubtitleStyle.Render(fmt.Sprintf("  (%s)", r.FinishedAt.Sub(r.StartedAt).Round(10*time.Millisecond)))
		}
		if r.Status == orchestrator.StatusFailed && r.ExitCode != 0 {
			line += SubtitleStyle.Render(fmt.Sprintf("  exit %d", r.ExitCode))
		}
		if r.Error != "" {
			line += "\n      " + ErrorStyle.Render(firstLine(r.Error))
		}
		fmt.Println(line)
	}

	fmt.Println()
	if report.Succeeded() {
		fmt.Println(SuccessStyle.Render("✓ all environments succeeded"))
	} else {
		fmt.Println(ErrorStyle.Render("✗ some environments failed"))
	}
}

// statusGlyph maps a terminal status to its styled marker.
func statusGlyph(s orchestrator.Status) string {
	switch s {
	case orchestrator.StatusSucceeded:
		return SuccessStyle.Render("✓")
	case orchestrator.StatusFailed, orchestrator.StatusErrored:
		return ErrorStyle.Render("✗")
	case orchestrator.StatusSkipped:
		return WarningStyle.Render("-")
	default:
		return SubtitleStyle.Render("?")
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
