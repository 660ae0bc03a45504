// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// listCmd prints the configured environments
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the environments configured in crucible.toml",
	Long: `List the environments configured in the project's crucible.toml,
in declaration order, with their descriptions. Environments in the
default_envs list are marked with an asterisk.`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	f, err := loadProjectFile()
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("%s", formatErrorForDisplay(err, verbose))}
	}

	fmt.Println(SubtitleStyle.Render("environments in " + f.FilePath))
	for _, name := range f.EnvNames() {
		spec, err := f.Resolve(name)
		if err != nil {
			return &ExitError{Code: ExitUsage, Err: fmt.Errorf("%s", formatErrorForDisplay(err, verbose))}
		}

		marker := " "
		if slices.Contains(f.DefaultEnvs, name) {
			marker = TitleStyle.Render("*")
		}

		line := fmt.Sprintf("%s %s", marker, EnvStyle.Render(name))
		if spec.Description != "" {
			line += SubtitleStyle.Render("  " + spec.Description)
		}
		fmt.Println(line)
	}

	return nil
}
