package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lightfastai/buildhooks/internal/hooks"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate buildhooks.yml and show the task set of every phase",
	Long: `Loads buildhooks.yml, normalizes every hook into its task set and checks
that each set can run. Shorthand hooks are shown split into their commands.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	if err := e.manager.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	bold := color.New(color.Bold).SprintFunc()

	if e.cfg.Build != "" {
		fmt.Fprintf(out, "%s %s\n", bold("build:"), e.cfg.Build)
	} else {
		fmt.Fprintf(out, "%s %s\n", bold("build:"), color.YellowString("(none)"))
	}

	for _, phase := range hooks.Phases() {
		set := e.manager.TaskSet(phase)
		if set.Empty() {
			fmt.Fprintf(out, "%s %s\n", bold(phase.String()+":"), color.HiBlackString("(no tasks)"))
			continue
		}
		fmt.Fprintf(out, "%s%s\n", bold(phase.String()+":"), flags(set))
		for i, t := range set.Tasks {
			fmt.Fprintf(out, "  %d. %s\n", i+1, t.String())
		}
	}

	fmt.Fprintln(out, color.GreenString("\n[buildhooks] Configuration is valid"))
	return nil
}

func flags(set hooks.TaskSet) string {
	var on []string
	if set.Parallel {
		on = append(on, "parallel")
	}
	if set.Blocking {
		on = append(on, "blocking")
	}
	if set.Once {
		on = append(on, "once")
	}
	if len(on) == 0 {
		return ""
	}
	return " [" + strings.Join(on, ", ") + "]"
}
