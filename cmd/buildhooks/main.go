package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lightfastai/buildhooks/internal/errors"
	"github.com/lightfastai/buildhooks/internal/logger"
)

// CLI entry point for the buildhooks tool

var (
	// Version information - will be set via ldflags during build
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	verboseFlag bool
	debugFlag   bool
	configFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "buildhooks",
	Short: "Run lifecycle hook scripts around a build",
	Long: `buildhooks runs configured scripts at fixed points of a build: before it
starts, when it starts, when it ends or fails, after output is written, and
when a watch session begins or ends.

Hooks are declared in buildhooks.yml. Each phase takes a shorthand string
("npm run lint && npm test"), a list of scripts, or a mapping with the
parallel, blocking and once options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(verboseFlag, debugFlag)
	},
}

func init() {
	// Custom version template that includes commit and build date
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
Commit: {{.Annotations.commit}}
Built: {{.Annotations.date}}
`)

	if rootCmd.Annotations == nil {
		rootCmd.Annotations = make(map[string]string)
	}
	rootCmd.Annotations["commit"] = commit
	rootCmd.Annotations["date"] = date

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show verbose output")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug output")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to buildhooks.yml (default: search from the current directory upwards)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, formatError(err))
		os.Exit(exitCode(err))
	}
}

// formatError renders structured errors with their context and fixes. An
// error whose report was already printed renders as nothing.
func formatError(err error) string {
	var reported doctorExit
	if stderrors.As(err, &reported) {
		return ""
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		if e.Error() == err.Error() {
			return e.Format()
		}
		return fmt.Sprintf("Error: %v\n\n%s", err, e.Format())
	}
	return fmt.Sprintf("Error: %v\n", err)
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	var coded interface{ ExitCode() int }
	if stderrors.As(err, &coded) {
		return coded.ExitCode()
	}
	return 1
}
