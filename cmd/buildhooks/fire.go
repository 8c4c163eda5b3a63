package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lightfastai/buildhooks/internal/errors"
	"github.com/lightfastai/buildhooks/internal/hooks"
	"github.com/lightfastai/buildhooks/internal/logger"
)

var fireCmd = &cobra.Command{
	Use:   "fire <phase>",
	Short: "Run the tasks of a single phase",
	Long: `Runs the task set of one phase on its own, without a build. Useful to try
out a hook while editing buildhooks.yml.

Phases: beforeNormalRun, beforeBuild, buildStart, buildEnd, buildError,
watchRun, doneWatch, afterDone.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: phaseCompletion,
	RunE:              runFire,
}

func init() {
	rootCmd.AddCommand(fireCmd)
}

func runFire(cmd *cobra.Command, args []string) error {
	phase := hooks.Phase(args[0])
	if !phase.IsValid() {
		return errors.New(errors.ErrConfigInvalid, fmt.Sprintf("Unknown phase %q", args[0])).
			WithFix("Run 'buildhooks validate' to list the phases")
	}

	e, err := newEngine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// dev mode empties the set once it has run
	count := len(e.manager.TaskSet(phase).Tasks)

	fireErr := e.manager.Fire(ctx, phase)
	if failed := e.pending.wait(); failed > 0 {
		logger.Warn("[buildhooks] %d background task(s) failed", failed)
	}
	if fireErr != nil {
		return fireErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "[buildhooks] %s: %d task(s) done\n", phase, count)
	return nil
}
