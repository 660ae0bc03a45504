// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	initForce bool

	// initCmd creates a new crucible.toml
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a new crucible.toml in the current directory",
		Long: `Create a new crucible.toml in the current directory with example
environments to help you get started quickly.`,
		RunE: runInit,
	}
)

const starterProjectFile = `# crucible project file

default_envs = ["tests"]
installer = ["pip", "install"]

[env.tests]
description = "Run the test suite"
deps = ["pytest"]
commands = ["pytest {posargs}"]

[env.lint]
description = "Static checks against the working tree"
isolated = false
commands = ["ruff check ."]
`

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing "+ProjectFileName)
}

func runInit(cmd *cobra.Command, args []string) error {
	filename := ProjectFileName
	if len(args) > 0 {
		filename = args[0]
	}

	if _, err := os.Stat(filename); err == nil && !initForce {
		return fmt.Errorf("file '%s' already exists. Use --force to overwrite", filename)
	}

	if err := os.WriteFile(filename, []byte(starterProjectFile), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	absPath, _ := filepath.Abs(filename)
	fmt.Printf("%s Created %s\n", SuccessStyle.Render("✓"), absPath)
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Next steps:"))
	fmt.Println("  1. Edit the file to declare your environments")
	fmt.Println("  2. Run 'crucible list' to see them")
	fmt.Println("  3. Run 'crucible run' to execute the defaults")

	return nil
}
