// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for crucible.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"crucible-cli/internal/config"
	"crucible-cli/internal/issue"
	"crucible-cli/pkg/envfile"
)

// ProjectFileName is the per-project configuration file crucible looks for.
const ProjectFileName = "crucible.toml"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging and full error chains
	verbose bool
	// cfgFile allows specifying a custom tool config file
	cfgFile string
	// projectFile allows specifying a custom crucible.toml path
	projectFile string

	// toolCfg is the loaded tool-level configuration.
	toolCfg = config.DefaultConfig()

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "crucible",
		Short: "A configuration-driven test environment orchestrator",
		Long: TitleStyle.Render("crucible") + SubtitleStyle.Render(" - A configuration-driven test environment orchestrator") + `

crucible reads named environments from a crucible.toml file, materializes
an isolated working directory per environment, installs its declared
dependencies, and runs its commands, aggregating everything into a single
success/failure verdict.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Create a crucible.toml in your project directory
  2. Declare environments under [env.NAME] sections
  3. Run them with: crucible run

` + SubtitleStyle.Render("Examples:") + `
  crucible run              Run the default environments
  crucible run lint tests   Run the named environments
  crucible run -p 4 'py3*'  Run matching environments, four at a time
  crucible list             List configured environments
  crucible config show      Show current tool configuration`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "tool config file (default is $HOME/.config/crucible/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&projectFile, "file", "f", "", "project file (default is ./"+ProjectFileName+", searched upward)")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig loads the tool-level configuration before any RunE runs.
func initRootConfig() {
	cfg, err := config.NewProvider().Load(context.Background(), config.LoadOptions{
		ConfigFilePath: cfgFile,
	})
	if err != nil {
		// Surface config loading errors but keep running on defaults.
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		return
	}

	toolCfg = cfg
	if !verbose {
		verbose = cfg.UI.Verbose
	}
}

// newLogger builds the CLI logger honoring verbosity.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		Prefix:          "crucible",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// loadProjectFile locates and parses the project's crucible.toml. Without an
// explicit --file flag the search walks upward from the working directory.
func loadProjectFile() (*envfile.File, error) {
	path := projectFile
	if path == "" {
		found, err := findProjectFile()
		if err != nil {
			return nil, err
		}
		path = found
	}

	f, err := envfile.Load(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// findProjectFile walks from the working directory toward the filesystem
// root looking for the project file.
func findProjectFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, ProjectFileName)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", issue.NewErrorContext().
		WithOperation("locate project file").
		WithResource(ProjectFileName).
		WithSuggestion("Run 'crucible init' to create one").
		WithSuggestion("Or point at an explicit file with --file").
		Wrap(fmt.Errorf("no %s found in this directory or any parent", ProjectFileName)).
		BuildError()
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// print their suggestions; other errors get hints from the issue mapper.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}

	msg := err.Error()
	for _, hint := range issue.Hints(err) {
		msg += "\n  • " + hint
	}
	return msg
}
