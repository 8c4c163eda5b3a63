package health

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lightfastai/buildhooks/internal/config"
	"github.com/lightfastai/buildhooks/internal/env"
	"github.com/lightfastai/buildhooks/internal/hooks"
	"github.com/lightfastai/buildhooks/internal/session"
)

// shellSyntax is passed through literally in direct mode
const shellSyntax = "|&;<>()$`\\\"'*?[]#~"

// CheckerContext holds the context for running health checks
type CheckerContext struct {
	Config      *config.Config
	ProjectRoot string

	// LoadErr is the error from loading the configuration, if any.
	LoadErr error

	// LookPath resolves executables. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

func (c *CheckerContext) lookPath(file string) (string, error) {
	if c.LookPath != nil {
		return c.LookPath(file)
	}
	return exec.LookPath(file)
}

// RunAll runs every check in order. Checks that need a configuration are
// skipped when none could be loaded.
func RunAll(ctx *CheckerContext) *Result {
	result := NewResult()
	result.AddCheck(CheckConfigFile(ctx))
	if ctx.Config == nil {
		return result
	}
	result.AddCheck(CheckHookPhases(ctx))
	result.AddCheck(CheckExecutables(ctx))
	result.AddCheck(CheckEnvFile(ctx))
	result.AddCheck(CheckWatchPaths(ctx))
	result.AddCheck(CheckSession(ctx))
	return result
}

// CheckConfigFile validates the configuration file
func CheckConfigFile(ctx *CheckerContext) Check {
	check := NewCheck("Configuration File", StatusPass, "")

	if ctx.Config == nil {
		return check.
			WithStatus(StatusError).
			WithMessage(fmt.Sprintf("No valid %s found", config.ConfigFileName)).
			WithError(ctx.LoadErr).
			WithFixAction("Run 'buildhooks init' to create a configuration file")
	}

	details := []string{
		fmt.Sprintf("Location: %s", filepath.Join(ctx.ProjectRoot, config.ConfigFileName)),
		fmt.Sprintf("Version: %d", ctx.Config.Version),
		fmt.Sprintf("Hooks: %d", len(ctx.Config.Hooks)),
	}
	if ctx.Config.Build != "" {
		details = append(details, fmt.Sprintf("Build: %s", ctx.Config.Build))
	}

	return check.
		WithMessage(fmt.Sprintf("Valid configuration with %d hook(s)", len(ctx.Config.Hooks))).
		WithDetails(details...)
}

// CheckHookPhases describes the normalized task set of every phase
func CheckHookPhases(ctx *CheckerContext) Check {
	check := NewCheck("Hook Phases", StatusPass, "")

	manager := hooks.NewManager(ctx.Config.Descriptors(), nil)
	if err := manager.Validate(); err != nil {
		return check.
			WithStatus(StatusError).
			WithMessage("A task set cannot be run").
			WithError(err).
			WithFixAction("Set only one of parallel and blocking")
	}

	configured := 0
	var details []string
	for _, phase := range hooks.Phases() {
		set := manager.TaskSet(phase)
		if set.Empty() {
			continue
		}
		configured++
		details = append(details, fmt.Sprintf("%s: %d task(s)%s", phase, len(set.Tasks), policy(set)))
	}

	if configured == 0 {
		return check.
			WithStatus(StatusWarn).
			WithMessage("No hook has any task to run").
			WithFixAction("Add scripts under 'hooks' in " + config.ConfigFileName)
	}

	return check.
		WithMessage(fmt.Sprintf("%d of %d phases have tasks", configured, len(hooks.Phases()))).
		WithDetails(details...)
}

func policy(set hooks.TaskSet) string {
	var flags []string
	if set.Parallel {
		flags = append(flags, "parallel")
	}
	if set.Blocking {
		flags = append(flags, "blocking")
	}
	if set.Once {
		flags = append(flags, "once")
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, ", ") + "]"
}

// CheckExecutables verifies that every hook command and the build command can
// be found. In direct mode a missing program is a spawn failure waiting to
// happen and shell syntax is passed to the program literally, so both are
// reported. With safe or shell mode the first word may be a shell builtin,
// so a missing program is only a warning.
func CheckExecutables(ctx *CheckerContext) Check {
	check := NewCheck("Executables", StatusPass, "")
	cfg := ctx.Config
	direct := !cfg.Safe && !cfg.Shell

	tasks := map[string]hooks.Task{}
	manager := hooks.NewManager(cfg.Descriptors(), nil)
	for _, phase := range hooks.Phases() {
		for _, t := range manager.TaskSet(phase).Tasks {
			if t.Kind == hooks.CommandTask {
				tasks[t.String()] = t
			}
		}
	}
	if cfg.Build != "" {
		tasks[cfg.Build] = hooks.Command(cfg.Build)
	}

	lines := make([]string, 0, len(tasks))
	for line := range tasks {
		lines = append(lines, line)
	}
	sort.Strings(lines)

	var missing, literal []string
	for _, line := range lines {
		t := tasks[line]
		program := hooks.Serialize(t).Command
		if !ctx.resolvable(program) {
			missing = append(missing, fmt.Sprintf("%s (in %q)", program, line))
		}
		if direct && t.Script == nil && strings.ContainsAny(line, shellSyntax) {
			literal = append(literal, line)
		}
	}

	switch {
	case len(missing) > 0 && direct:
		return check.
			WithStatus(StatusError).
			WithMessage(fmt.Sprintf("%d program(s) not found on PATH", len(missing))).
			WithDetails(missing...).
			WithFixAction("Install the programs or fix the script names")
	case len(missing) > 0:
		return check.
			WithStatus(StatusWarn).
			WithMessage(fmt.Sprintf("%d program(s) not found on PATH; fine if they are shell builtins", len(missing))).
			WithDetails(missing...)
	case len(literal) > 0:
		return check.
			WithStatus(StatusWarn).
			WithMessage("Some scripts use shell syntax but run without a shell").
			WithDetails(literal...).
			WithFixAction("Set safe: true to run scripts through the shell interpreter")
	}

	return check.WithMessage(fmt.Sprintf("All %d command(s) resolve", len(lines)))
}

func (c *CheckerContext) resolvable(program string) bool {
	if program == "" {
		return false
	}
	if strings.ContainsRune(program, filepath.Separator) || strings.ContainsRune(program, '/') {
		path := program
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.ProjectRoot, path)
		}
		_, err := os.Stat(path)
		return err == nil
	}
	_, err := c.lookPath(program)
	return err == nil
}

// CheckEnvFile validates the dotenv file applied to hook commands
func CheckEnvFile(ctx *CheckerContext) Check {
	check := NewCheck("Environment File", StatusPass, "")
	cfg := ctx.Config

	if cfg.EnvFile == "" {
		return check.WithMessage(fmt.Sprintf("No env file configured (%d inline variable(s))", len(cfg.Env)))
	}

	path := cfg.EnvFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(ctx.ProjectRoot, path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return check.
			WithStatus(StatusWarn).
			WithMessage(fmt.Sprintf("Env file %s does not exist", cfg.EnvFile)).
			WithFixAction(fmt.Sprintf("Create %s or remove envFile from the configuration", cfg.EnvFile))
	}

	vars, err := env.LoadEnvFile(path)
	if err != nil {
		return check.
			WithStatus(StatusError).
			WithMessage(fmt.Sprintf("Env file %s cannot be parsed", cfg.EnvFile)).
			WithError(err).
			WithFixAction("Check the dotenv syntax of the file")
	}

	return check.WithMessage(fmt.Sprintf("Env file %s defines %d variable(s)", cfg.EnvFile, len(vars)))
}

// CheckWatchPaths verifies that the paths of a watch session exist
func CheckWatchPaths(ctx *CheckerContext) Check {
	check := NewCheck("Watch Paths", StatusPass, "")

	var missing []string
	paths := ctx.Config.WatchPaths(ctx.ProjectRoot)
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}

	if len(missing) > 0 {
		return check.
			WithStatus(StatusWarn).
			WithMessage(fmt.Sprintf("%d watch path(s) do not exist", len(missing))).
			WithDetails(missing...).
			WithFixAction("Fix the 'watch' list in " + config.ConfigFileName)
	}
	return check.WithMessage(fmt.Sprintf("Watching %d path(s)", len(paths)))
}

// CheckSession reports a running watch session and stale session state
func CheckSession(ctx *CheckerContext) Check {
	check := NewCheck("Watch Session", StatusPass, "")

	running, err := session.Running(ctx.ProjectRoot)
	if err != nil {
		return check.
			WithStatus(StatusWarn).
			WithMessage("Cannot determine whether a watch session is running").
			WithError(err)
	}

	state, ok, err := session.ReadState(ctx.ProjectRoot)
	if err != nil {
		return check.
			WithStatus(StatusWarn).
			WithMessage("Session state file is unreadable").
			WithError(err).
			WithFixAction(fmt.Sprintf("Remove %s", session.StatePath(ctx.ProjectRoot)))
	}

	switch {
	case running && ok:
		details := []string{
			fmt.Sprintf("PID: %d", state.PID),
			fmt.Sprintf("Cycles: %d (%d failed)", state.Cycles, state.Failures),
		}
		if state.LastError != "" {
			details = append(details, "Last error: "+state.LastError)
		}
		return check.
			WithMessage(fmt.Sprintf("Watch session running since %s", state.StartedAt.Format("15:04:05"))).
			WithDetails(details...)
	case running:
		return check.WithMessage("Watch session running")
	case ok:
		return check.
			WithStatus(StatusWarn).
			WithMessage(fmt.Sprintf("Stale session state left by PID %d", state.PID)).
			WithFixAction(fmt.Sprintf("Remove %s", session.StatePath(ctx.ProjectRoot)))
	default:
		return check.WithMessage("No watch session running")
	}
}
