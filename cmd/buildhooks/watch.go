package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lightfastai/buildhooks/internal/logger"
	"github.com/lightfastai/buildhooks/internal/pipeline"
	"github.com/lightfastai/buildhooks/internal/session"
)

var watchWait time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild on every change and fire the watch hooks",
	Long: `Starts a watch session. The first cycle runs immediately and fires watchRun.
Every later change under the watched paths starts another cycle; changes made
while a cycle runs are collected into the next one.

Hooks declared with once: true run only in the first cycle. doneWatch fires
when the session ends with Ctrl+C.

Only one watch session can run per project.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchWait, "wait", 100*time.Millisecond, "Quiet period before a change starts a cycle")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := session.Acquire(ctx, e.root)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("[buildhooks] %v", err)
		}
	}()

	out := cmd.OutOrStdout()
	err = e.pipeline.Watch(ctx, pipeline.WatchOptions{
		Paths:  e.cfg.WatchPaths(e.root),
		Ignore: e.cfg.Ignore,
		Wait:   watchWait,
		OnCycle: func(changed []string, cycleErr error) {
			if recErr := s.Record(cycleErr); recErr != nil {
				logger.Warn("[buildhooks] %v", recErr)
			}
			reportCycle(out, changed, cycleErr)
			if failed := e.pending.reap(); failed > 0 {
				logger.Warn("[buildhooks] %d background task(s) failed", failed)
			}
		},
	})

	if failed := e.pending.wait(); failed > 0 {
		logger.Warn("[buildhooks] %d background task(s) failed", failed)
	}
	if err != nil {
		return err
	}

	state := s.State()
	fmt.Fprintf(out, "[buildhooks] Watch session ended after %d cycle(s), %d failed\n", state.Cycles, state.Failures)
	return nil
}

func reportCycle(out io.Writer, changed []string, err error) {
	trigger := "initial build"
	if len(changed) == 1 {
		trigger = changed[0]
	} else if len(changed) > 1 {
		trigger = fmt.Sprintf("%d changes", len(changed))
	}

	if err != nil {
		fmt.Fprintf(out, "%s %s: %v\n", color.RedString("✗"), trigger, err)
		return
	}
	fmt.Fprintf(out, "%s %s\n", color.GreenString("✓"), trigger)
}
