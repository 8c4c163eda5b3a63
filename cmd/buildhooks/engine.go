package main

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/lightfastai/buildhooks/internal/config"
	"github.com/lightfastai/buildhooks/internal/execext"
	"github.com/lightfastai/buildhooks/internal/hooks"
	"github.com/lightfastai/buildhooks/internal/logger"
	"github.com/lightfastai/buildhooks/internal/pipeline"
)

// engine is everything a command needs to fire hooks for one project
type engine struct {
	cfg      *config.Config
	root     string
	manager  *hooks.Manager
	pipeline *pipeline.Pipeline
	pending  *pendingSet
}

// loadConfig honours --config and otherwise searches upwards from the
// working directory
func loadConfig() (*config.Config, string, error) {
	if configFlag == "" {
		return config.LoadConfig()
	}
	path, err := filepath.Abs(configFlag)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	cfg, err := config.LoadConfigFrom(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, filepath.Dir(path), nil
}

func newEngine() (*engine, error) {
	cfg, root, err := loadConfig()
	if err != nil {
		return nil, err
	}

	opts, err := cfg.ExecOptions(root)
	if err != nil {
		return nil, err
	}
	opts.Log = logger.Std{}
	logger.SetEnabled(cfg.LoggingEnabled())
	logger.Debug("[buildhooks] project root: %s", root)
	logger.Debug("[buildhooks] exec options: %s", opts)

	// The build always runs through the interpreter so that a failing build
	// is reported instead of only logged.
	buildOpts := opts
	buildOpts.Safe = true
	buildOpts.Logging = true

	pending := &pendingSet{}
	runner := &hooks.Runner{
		Exec:     execext.New(opts),
		Log:      logger.Std{},
		OnDetach: pending.add,
	}
	manager := hooks.NewManager(cfg.Descriptors(), runner)

	var build hooks.Task
	if cfg.Build != "" {
		build = hooks.Command(cfg.Build)
	}

	return &engine{
		cfg:     cfg,
		root:    root,
		manager: manager,
		pipeline: &pipeline.Pipeline{
			Hooks: manager,
			Build: build,
			Exec:  execext.New(buildOpts),
			Log:   logger.Std{},
		},
		pending: pending,
	}, nil
}

// pendingSet collects the handles of work started without waiting, so the
// process can let it finish before exiting
type pendingSet struct {
	mu      sync.Mutex
	handles []*hooks.Pending
	tasks   []hooks.Task
}

func (s *pendingSet) add(t hooks.Task, p *hooks.Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = append(s.handles, p)
	s.tasks = append(s.tasks, t)
}

// wait blocks until every collected handle resolves and logs failures. It
// returns the number of failures.
func (s *pendingSet) wait() int {
	s.mu.Lock()
	handles, tasks := s.handles, s.tasks
	s.handles, s.tasks = nil, nil
	s.mu.Unlock()

	failed := 0
	for i, p := range handles {
		if err := p.Wait(); err != nil {
			failed++
			logger.Warn("[buildhooks] background task %q failed: %v", tasks[i].String(), err)
		}
	}
	return failed
}

// reap drops the handles that have already resolved, logging failures, and
// keeps the rest. It returns the number of failures.
func (s *pendingSet) reap() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	failed := 0
	handles, tasks := s.handles[:0], s.tasks[:0]
	for i, p := range s.handles {
		select {
		case <-p.Done():
			if err := p.Err(); err != nil {
				failed++
				logger.Warn("[buildhooks] background task %q failed: %v", s.tasks[i].String(), err)
			}
		default:
			handles = append(handles, p)
			tasks = append(tasks, s.tasks[i])
		}
	}
	clear(s.handles[len(handles):])
	s.handles, s.tasks = handles, tasks
	return failed
}
