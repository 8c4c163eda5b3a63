package hooks

import (
	"context"
	"fmt"

	"github.com/lightfastai/buildhooks/internal/errors"
)

// Executor runs command tasks. Run blocks until the process exits; Start
// returns at once with a handle that resolves when it does.
type Executor interface {
	Run(ctx context.Context, t Task) error
	Start(ctx context.Context, t Task) *Pending
}

// Logger receives the engine's diagnostics
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Runner executes a TaskSet according to its policy
type Runner struct {
	Exec Executor
	Log  Logger

	// OnDetach receives the handle of every task the runner starts and does
	// not wait for: parallel commands and non-blocking callbacks. Handles
	// are dropped when it is nil.
	OnDetach func(t Task, p *Pending)
}

// Run executes the tasks of set in order. A blocking failure, or an awaited
// failure of a serial non-blocking command, stops the remaining tasks and is
// returned.
func (r *Runner) Run(ctx context.Context, set TaskSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	if set.Empty() {
		return nil
	}

	for i, t := range set.Tasks {
		r.log().Debugf("[buildhooks] task %d/%d: %s", i+1, len(set.Tasks), t)
		if err := r.runTask(ctx, set, t); err != nil {
			return fmt.Errorf("task %d of %d: %w", i+1, len(set.Tasks), err)
		}
	}
	return nil
}

func (r *Runner) runTask(ctx context.Context, set TaskSet, t Task) error {
	switch t.Kind {
	case CallbackTask:
		if set.Blocking {
			if err := invoke(ctx, t.Func); err != nil {
				return errors.TaskFailed(t.String(), err)
			}
			return nil
		}
		r.detach(t, Go(func() error {
			err := invoke(ctx, t.Func)
			if err != nil {
				r.log().Errorf("callback failed: %v", err)
			}
			return err
		}))
		return nil

	case CommandTask:
		switch {
		case set.Blocking:
			return r.Exec.Run(ctx, t)
		case set.Parallel:
			r.detach(t, r.Exec.Start(ctx, t))
			return nil
		default:
			return r.Exec.Start(ctx, t).Wait()
		}

	default:
		return fmt.Errorf("unknown task kind %d", t.Kind)
	}
}

// invoke calls cb, turning a panic into an error
func invoke(ctx context.Context, cb Callback) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("callback panicked: %v", p)
		}
	}()
	return cb(ctx)
}

func (r *Runner) detach(t Task, p *Pending) {
	if r.OnDetach != nil {
		r.OnDetach(t, p)
		return
	}
	// Not joined: the hook completes while this work may still be running.
	_ = p
}

func (r *Runner) log() Logger {
	if r.Log == nil {
		return nopLogger{}
	}
	return r.Log
}
