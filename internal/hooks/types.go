package hooks

import (
	"context"
	"strings"

	"github.com/lightfastai/buildhooks/internal/errors"
)

// Phase represents a build lifecycle point that can trigger hooks
type Phase string

const (
	// BeforeNormalRun is triggered at build start when not in watch mode
	BeforeNormalRun Phase = "beforeNormalRun"

	// BeforeBuild is triggered at build start, after BeforeNormalRun or WatchRun
	BeforeBuild Phase = "beforeBuild"

	// BuildStart is triggered when the build begins resolving modules
	BuildStart Phase = "buildStart"

	// BuildEnd is triggered when a build finishes without error
	BuildEnd Phase = "buildEnd"

	// BuildError is triggered instead of BuildEnd when the build failed
	BuildError Phase = "buildError"

	// WatchRun is triggered at build start inside a watch session
	WatchRun Phase = "watchRun"

	// DoneWatch is triggered when the watcher closes
	DoneWatch Phase = "doneWatch"

	// AfterDone is triggered after output has been written
	AfterDone Phase = "afterDone"
)

// Phases returns every phase in declaration order
func Phases() []Phase {
	return []Phase{
		BeforeNormalRun,
		BeforeBuild,
		BuildStart,
		BuildEnd,
		BuildError,
		WatchRun,
		DoneWatch,
		AfterDone,
	}
}

// String returns the string representation of a Phase
func (p Phase) String() string {
	return string(p)
}

// IsValid checks if a Phase is one of the recognized phases
func (p Phase) IsValid() bool {
	switch p {
	case BeforeNormalRun, BeforeBuild, BuildStart, BuildEnd, BuildError, WatchRun, DoneWatch, AfterDone:
		return true
	default:
		return false
	}
}

// Script is a command split into the program and its arguments
type Script struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

// String joins the command and arguments with single spaces
func (s Script) String() string {
	if len(s.Args) == 0 {
		return s.Command
	}
	return s.Command + " " + strings.Join(s.Args, " ")
}

// Callback is an in-process task. It may block; the runner waits for it only
// when the task set is blocking.
type Callback func(ctx context.Context) error

// TaskKind tells the two task variants apart
type TaskKind uint8

const (
	// CommandTask runs an external process
	CommandTask TaskKind = iota
	// CallbackTask invokes a Callback
	CallbackTask
)

// Task is one unit of work in a task set. Tasks are values and are never
// modified once built.
type Task struct {
	Kind TaskKind

	// Line is the textual command of a command task built with Command.
	Line string

	// Script is the pre-split command of a command task built with Structured.
	Script *Script

	// Func is set for callback tasks.
	Func Callback
}

// Command returns a command task from its textual form
func Command(line string) Task {
	return Task{Kind: CommandTask, Line: line}
}

// Structured returns a command task that is already split into a program and
// its arguments
func Structured(s Script) Task {
	args := make([]string, len(s.Args))
	copy(args, s.Args)
	return Task{Kind: CommandTask, Script: &Script{Command: s.Command, Args: args}}
}

// Func returns a callback task
func Func(cb Callback) Task {
	return Task{Kind: CallbackTask, Func: cb}
}

// String describes the task for logs and errors
func (t Task) String() string {
	switch t.Kind {
	case CallbackTask:
		return "<callback>"
	default:
		if t.Script != nil {
			return t.Script.String()
		}
		return t.Line
	}
}

// TaskSet is the normalized configuration of one hook
type TaskSet struct {
	// Tasks run in this order.
	Tasks []Task

	// Parallel starts every task without waiting for the previous one.
	Parallel bool

	// Blocking waits for each task and propagates its failure.
	Blocking bool

	// Once limits the set to a single run for the lifetime of the table.
	Once bool
}

// Empty reports whether the set has nothing to run
func (s TaskSet) Empty() bool {
	return len(s.Tasks) == 0
}

// Validate rejects policies that cannot be honoured
func (s TaskSet) Validate() error {
	if s.Parallel && s.Blocking {
		return errors.InvalidTaskSet("")
	}
	return nil
}

// clone copies the task slice so the set does not alias its source
func (s TaskSet) clone() TaskSet {
	tasks := make([]Task, len(s.Tasks))
	copy(tasks, s.Tasks)
	s.Tasks = tasks
	return s
}
