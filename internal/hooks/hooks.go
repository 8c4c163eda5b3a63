package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/lightfastai/buildhooks/internal/errors"
)

// Config is the hook configuration consumed by NewManager
type Config struct {
	// Hooks holds one descriptor per phase. Missing phases have no tasks.
	Hooks map[Phase]Descriptor

	// Dev replaces a phase's task set with an empty one after it has run
	// successfully, so the hook stays inert for later cycles.
	Dev bool
}

// entry is the runtime state of one phase
type entry struct {
	mu    sync.Mutex
	set   TaskSet
	fired bool
}

// Manager binds each phase to its task set and fires them for the host
// build pipeline
type Manager struct {
	runner  *Runner
	dev     bool
	entries map[Phase]*entry
}

// NewManager normalizes every descriptor in cfg. The descriptors themselves
// are not retained, so one Config can back several managers.
func NewManager(cfg Config, runner *Runner) *Manager {
	if runner == nil {
		runner = &Runner{}
	}
	m := &Manager{
		runner:  runner,
		dev:     cfg.Dev,
		entries: make(map[Phase]*entry, len(Phases())),
	}
	for _, p := range Phases() {
		m.entries[p] = &entry{set: Normalize(cfg.Hooks[p]).clone()}
	}
	return m
}

// Validate checks every phase's task set without running anything
func (m *Manager) Validate() error {
	for _, p := range Phases() {
		if set := m.TaskSet(p); set.Validate() != nil {
			return errors.InvalidTaskSet(p.String())
		}
	}
	return nil
}

// TaskSet returns a copy of the phase's current task set
func (m *Manager) TaskSet(phase Phase) TaskSet {
	e, ok := m.entries[phase]
	if !ok {
		return TaskSet{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set.clone()
}

// Fire runs the task set of phase if it is eligible. A once-only set is
// claimed before it runs, so concurrent or repeated firings run it at most
// one time.
func (m *Manager) Fire(ctx context.Context, phase Phase) error {
	e, ok := m.entries[phase]
	if !ok {
		return fmt.Errorf("invalid hook phase: %s", phase)
	}

	e.mu.Lock()
	if e.set.Once && e.fired {
		e.mu.Unlock()
		m.runner.log().Debugf("[buildhooks] %s already ran once, skipping", phase)
		return nil
	}
	if e.set.Empty() {
		e.mu.Unlock()
		return nil
	}
	// An unusable set fails on every firing and never claims the once flag.
	if err := e.set.Validate(); err != nil {
		e.mu.Unlock()
		return errors.InvalidTaskSet(phase.String())
	}
	if e.set.Once {
		e.fired = true
	}
	set := e.set.clone()
	e.mu.Unlock()

	m.announce(phase, len(set.Tasks))

	if err := m.runner.Run(ctx, set); err != nil {
		return fmt.Errorf("hook %s failed: %w", phase, err)
	}

	if m.dev {
		e.mu.Lock()
		e.set = TaskSet{}
		e.mu.Unlock()
	}
	return nil
}

func (m *Manager) announce(phase Phase, n int) {
	log := m.runner.log()
	switch phase {
	case BeforeNormalRun:
		log.Infof("[buildhooks] Executing pre-run scripts (%d)", n)
	case WatchRun:
		log.Infof("[buildhooks] Executing watch-run scripts (%d)", n)
	case BeforeBuild:
		log.Infof("[buildhooks] Executing before build scripts (%d)", n)
	case BuildStart:
		log.Infof("[buildhooks] Executing pre-build scripts (%d)", n)
	case BuildEnd:
		log.Infof("[buildhooks] Executing post-build scripts (%d)", n)
	case BuildError:
		log.Warnf("[buildhooks] Executing error scripts before exit (%d)", n)
	default:
		log.Infof("[buildhooks] Executing additional scripts before exit (%d)", n)
	}
}

// BuildStart is called when a build begins. It fires WatchRun inside a watch
// session and BeforeNormalRun otherwise, then BeforeBuild.
func (m *Manager) BuildStart(ctx context.Context, watch bool) error {
	first := BeforeNormalRun
	if watch {
		first = WatchRun
	}
	if err := m.Fire(ctx, first); err != nil {
		return err
	}
	return m.Fire(ctx, BeforeBuild)
}

// ResolveID is called as the build starts resolving inputs and fires BuildStart
func (m *Manager) ResolveID(ctx context.Context) error {
	return m.Fire(ctx, BuildStart)
}

// BuildEnd fires BuildError when buildErr is non-nil and BuildEnd otherwise
func (m *Manager) BuildEnd(ctx context.Context, buildErr error) error {
	if buildErr != nil {
		return m.Fire(ctx, BuildError)
	}
	return m.Fire(ctx, BuildEnd)
}

// CloseBundle is called once output is written and fires AfterDone
func (m *Manager) CloseBundle(ctx context.Context) error {
	return m.Fire(ctx, AfterDone)
}

// CloseWatcher is called when a watch session ends and fires DoneWatch
func (m *Manager) CloseWatcher(ctx context.Context) error {
	return m.Fire(ctx, DoneWatch)
}
