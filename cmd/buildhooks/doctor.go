package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lightfastai/buildhooks/internal/health"
	"github.com/lightfastai/buildhooks/internal/logger"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on the buildhooks setup",
	Long: `Run health checks to detect problems before a build runs into them.

The doctor command performs the following checks:
  - Configuration file validation
  - Hook task sets
  - Executables used by hooks and the build
  - Environment file
  - Watch paths
  - Watch session state

Exit codes:
  0 - All checks passed
  1 - Some checks passed with warnings
  2 - Some checks failed with errors

Examples:
  # Run all health checks
  buildhooks doctor

  # Output results as JSON for CI/automation
  buildhooks doctor --json

  # Show details of passing checks too
  buildhooks doctor --verbose`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Output results as JSON")
	rootCmd.AddCommand(doctorCmd)
}

// doctorExit carries the doctor exit code. main prints nothing for it
// since the report already went to the output.
type doctorExit int

func (e doctorExit) Error() string { return fmt.Sprintf("doctor found problems (exit code %d)", int(e)) }

// ExitCode implements the exit code lookup in main
func (e doctorExit) ExitCode() int { return int(e) }

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := &health.CheckerContext{}

	cfg, root, err := loadConfig()
	if err != nil {
		logger.Verbose("Configuration could not be loaded: %v", err)
		ctx.LoadErr = err
	} else {
		ctx.Config = cfg
		ctx.ProjectRoot = root
	}

	result := health.RunAll(ctx)

	out := cmd.OutOrStdout()
	if doctorJSON {
		data, err := result.FormatJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, data)
	} else {
		fmt.Fprint(out, result.Format(verboseFlag))
	}

	if result.ExitCode != 0 {
		return doctorExit(result.ExitCode)
	}
	return nil
}
