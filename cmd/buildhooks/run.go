package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lightfastai/buildhooks/internal/logger"
)

var runWatchMode bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one build cycle with its hooks",
	Long: `Runs one build cycle: beforeNormalRun, beforeBuild, buildStart, the build
command, buildEnd (or buildError when the build fails) and afterDone.

With --watch-mode the cycle fires watchRun in place of beforeNormalRun, as a
cycle of a watch session would.

Examples:
  # Build once
  buildhooks run

  # Use a configuration outside the current directory
  buildhooks run --config ../app/buildhooks.yml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runWatchMode, "watch-mode", false, "Fire watchRun as part of the cycle")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cycleErr := e.pipeline.Cycle(ctx, runWatchMode)

	if failed := e.pending.wait(); failed > 0 {
		logger.Warn("[buildhooks] %d background task(s) failed", failed)
	}
	if cycleErr != nil {
		return cycleErr
	}

	fmt.Fprintln(cmd.OutOrStdout(), "[buildhooks] Build cycle complete")
	return nil
}

// commandContext returns the command context, falling back to Background
// when the command runs outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
