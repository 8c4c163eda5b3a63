package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lightfastai/buildhooks/internal/config"
	"github.com/lightfastai/buildhooks/internal/errors"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new buildhooks configuration",
	Long: `Creates a buildhooks.yml file in the current directory with a build command
and a few example hooks.

If a configuration file already exists, use --force to overwrite it.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite existing configuration file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(cwd, config.ConfigFileName)
	out := cmd.OutOrStdout()

	if _, err := os.Stat(configPath); err == nil {
		if !forceInit {
			return errors.ConfigExists(configPath)
		}
		fmt.Fprintf(out, "[buildhooks] Overwriting existing configuration at %s\n", configPath)
	}

	if err := config.SaveConfig(config.Template(), configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(out, "[buildhooks] Initialized configuration at %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Set your build command and hooks in "+config.ConfigFileName)
	fmt.Fprintln(out, "  2. Check the configuration with: buildhooks validate")
	fmt.Fprintln(out, "  3. Build once with: buildhooks run, or keep rebuilding with: buildhooks watch")

	return nil
}
