package execext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/lightfastai/buildhooks/internal/env"
	bherrors "github.com/lightfastai/buildhooks/internal/errors"
	"github.com/lightfastai/buildhooks/internal/hooks"
)

// Options configures how hook commands are started
type Options struct {
	// Env is laid over the current process environment for every command.
	Env map[string]string

	// Logging forwards command output and reports failures. When false,
	// command output is discarded.
	Logging bool

	// Safe hands the raw command line to the shell interpreter instead of
	// splitting it into argv.
	Safe bool

	// Shell runs direct-mode commands through the shell interpreter after
	// serialization.
	Shell bool

	// SwallowError resolves failed non-blocking commands as success after
	// logging the failure.
	SwallowError bool

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	Log hooks.Logger
}

// Runner starts hook commands. It implements hooks.Executor.
type Runner struct {
	opts    Options
	stdout  io.Writer
	stderr  io.Writer
	environ func() []string
}

var _ hooks.Executor = (*Runner)(nil)

// New returns a Runner for opts
func New(opts Options) *Runner {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if opts.Log == nil {
		opts.Log = nopLogger{}
	}
	return &Runner{
		opts:    opts,
		stdout:  NewSyncWriter(stdout),
		stderr:  NewSyncWriter(stderr),
		environ: os.Environ,
	}
}

// Environ is the environment every command receives: a fresh copy of the
// process environment with Options.Env applied.
func (r *Runner) Environ() []string {
	return env.Overlay(r.environ(), r.opts.Env)
}

// Run executes t and waits for it.
//
// In direct mode a non-zero exit status is logged together with the
// captured stderr and is not returned. A command that cannot be started is
// returned as a spawn error. In safe mode a non-zero exit status is
// returned as a task failure.
func (r *Runner) Run(ctx context.Context, t hooks.Task) error {
	if r.opts.Safe {
		return r.runSafe(ctx, t)
	}

	s := hooks.Serialize(t)
	if s.Command == "" {
		return bherrors.SpawnFailed(t.String(), errors.New("empty command"))
	}

	stdout := io.Discard
	if r.opts.Logging {
		stdout = r.stdout
	}
	var stderr bytes.Buffer

	var err error
	if r.opts.Shell {
		var line string
		line, err = hooks.Line(t)
		if err == nil {
			err = r.interpret(ctx, line, stdout, &stderr)
		}
	} else {
		cmd := r.command(ctx, s)
		cmd.Stdout = stdout
		cmd.Stderr = &stderr
		err = cmd.Run()
	}

	if err == nil {
		return nil
	}
	if IsExitError(err) {
		if r.opts.Logging {
			r.opts.Log.Errorf("stderr error %s: %s", s, strings.TrimSpace(stderr.String()))
		}
		return nil
	}
	return bherrors.SpawnFailed(s.Command, err)
}

func (r *Runner) runSafe(ctx context.Context, t hooks.Task) error {
	line, err := hooks.Line(t)
	if err != nil {
		return bherrors.SpawnFailed(t.String(), err)
	}

	stdout, stderr := io.Discard, io.Discard
	if r.opts.Logging {
		stdout, stderr = r.stdout, r.stderr
	}
	if err := r.interpret(ctx, line, stdout, stderr); err != nil {
		if IsExitError(err) {
			return bherrors.TaskFailed(line, err)
		}
		return bherrors.SpawnFailed(line, err)
	}
	return nil
}

// Start launches t and returns without waiting. Stdout and stderr of the
// child both go to the runner's stdout when logging. The handle resolves to
// the failure, or to nil when it was swallowed.
func (r *Runner) Start(ctx context.Context, t hooks.Task) *hooks.Pending {
	out := io.Discard
	if r.opts.Logging {
		out = r.stdout
	}

	if r.opts.Safe {
		line, err := hooks.Line(t)
		if err != nil {
			return hooks.Resolved(r.settle(bherrors.SpawnFailed(t.String(), err)))
		}
		return hooks.Go(func() error {
			return r.settle(classify(line, r.interpret(ctx, line, out, out)))
		})
	}

	s := hooks.Serialize(t)
	if s.Command == "" {
		return hooks.Resolved(r.settle(bherrors.SpawnFailed(t.String(), errors.New("empty command"))))
	}

	if r.opts.Shell {
		line, err := hooks.Line(t)
		if err != nil {
			return hooks.Resolved(r.settle(bherrors.SpawnFailed(s.Command, err)))
		}
		return hooks.Go(func() error {
			return r.settle(classify(s.String(), r.interpret(ctx, line, out, out)))
		})
	}

	cmd := r.command(ctx, s)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		if r.opts.Logging {
			r.opts.Log.Errorf("stderr error %s: %v", s, err)
		}
		return hooks.Resolved(r.settle(bherrors.SpawnFailed(s.Command, err)))
	}
	return hooks.Go(func() error {
		return r.settle(classify(s.String(), cmd.Wait()))
	})
}

// settle applies the swallow policy to the outcome of a non-blocking command
func (r *Runner) settle(err error) error {
	if err == nil {
		return nil
	}
	if r.opts.SwallowError {
		if r.opts.Logging {
			r.opts.Log.Warnf("ignoring failed command: %v", err)
		}
		return nil
	}
	return err
}

func (r *Runner) command(ctx context.Context, s hooks.Script) *exec.Cmd {
	// #nosec G204 - commands come from the project's own hook configuration
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Env = r.Environ()
	cmd.Dir = r.opts.Dir
	return cmd
}

func classify(task string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsExitError(err):
		return bherrors.TaskFailed(task, err)
	default:
		return bherrors.SpawnFailed(task, err)
	}
}

// IsExitError reports whether err is a process or interpreter exit status
func IsExitError(err error) bool {
	_, ok := ExitCode(err)
	return ok
}

// ExitCode extracts the exit status carried by err
func ExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	if status, ok := shellExitStatus(err); ok {
		return int(status), true
	}
	return 0, false
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// String describes the options for debug output
func (o Options) String() string {
	return fmt.Sprintf("safe=%t shell=%t swallowError=%t logging=%t env=%d", o.Safe, o.Shell, o.SwallowError, o.Logging, len(o.Env))
}
