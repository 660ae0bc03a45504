// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"crucible-cli/internal/config"
)

// configCmd manages the tool-level configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage crucible tool configuration",
	Long: `Manage crucible's tool-level configuration.

Configuration is stored in:
  - Linux: ~/.config/crucible/config.toml
  - macOS: ~/Library/Application Support/crucible/config.toml
  - Windows: %APPDATA%\crucible\config.toml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective tool configuration",
		RunE:  runConfigShow,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the tool config file path",
		RunE:  runConfigPath,
	})
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	workRoot := toolCfg.WorkRoot
	if workRoot == "" {
		workRoot = SubtitleStyle.Render("(.crucible next to " + ProjectFileName + ")")
	}
	installer := strings.Join(toolCfg.Installer, " ")
	if installer == "" {
		installer = SubtitleStyle.Render("(project setting)")
	}

	fmt.Println(TitleStyle.Render("tool configuration"))
	fmt.Printf("  work_root:  %s\n", workRoot)
	fmt.Printf("  parallel:   %d (effective %d)\n", toolCfg.Parallel, toolCfg.EffectiveParallel())
	fmt.Printf("  installer:  %s\n", installer)
	fmt.Printf("  ui.verbose: %t\n", toolCfg.UI.Verbose)
	fmt.Printf("  ui.color:   %s\n", toolCfg.UI.Color)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		fmt.Println(cfgFile)
		return nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	fmt.Println(filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
	return nil
}
