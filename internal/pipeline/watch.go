package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWaitTime     = 100 * time.Millisecond
	defaultRescanPeriod = 5 * time.Second
)

// ignoredDirs are never watched
var ignoredDirs = []string{
	".git",
	".hg",
	"node_modules",
	".buildhooks",
}

// WatchOptions configures a watch session
type WatchOptions struct {
	// Paths are the files and directories to watch. Directories are watched
	// recursively.
	Paths []string

	// Ignore lists extra directory names that are never watched, such as
	// the build output directory.
	Ignore []string

	// Wait is the quiet period before a burst of changes starts a cycle.
	Wait time.Duration

	// Rescan is how often the watched trees are scanned for new
	// directories.
	Rescan time.Duration

	// OnCycle is called after every cycle with its result.
	OnCycle func(changed []string, err error)
}

// Watch runs a first cycle and then one cycle per batch of file changes until
// ctx is cancelled. Failed cycles are reported to OnCycle and logged; they do
// not end the session. The doneWatch hooks fire when the session ends.
func (p *Pipeline) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Wait <= 0 {
		opts.Wait = defaultWaitTime
	}
	if opts.Rescan <= 0 {
		opts.Rescan = defaultRescanPeriod
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	tree := &watchTree{
		w:      w,
		ignore: append(append([]string{}, ignoredDirs...), opts.Ignore...),
		dirs:   xsync.NewMap[string, bool](),
	}
	for _, path := range opts.Paths {
		if err := tree.add(path); err != nil {
			return err
		}
	}
	p.log().Infof("[buildhooks] Watching %d directories", tree.dirs.Size())

	p.runCycle(ctx, nil, opts)

	g, gctx := errgroup.WithContext(ctx)
	batches := NewDebouncer(opts.Wait, tree.ignored).Run(gctx, w.Events)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case changed, ok := <-batches:
				if !ok {
					return nil
				}
				for _, name := range changed {
					if info, err := os.Stat(name); err == nil && info.IsDir() {
						if err := tree.add(name); err != nil {
							p.log().Warnf("[buildhooks] cannot watch %s: %v", name, err)
						}
					}
				}
				p.log().Debugf("[buildhooks] changed: %s", strings.Join(changed, ", "))
				p.runCycle(gctx, changed, opts)
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				p.log().Errorf("[buildhooks] watch error: %v", err)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(opts.Rescan)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				for _, path := range opts.Paths {
					if err := tree.add(path); err != nil {
						p.log().Warnf("[buildhooks] rescan of %s failed: %v", path, err)
					}
				}
			}
		}
	})

	err = g.Wait()

	if closeErr := p.Hooks.CloseWatcher(context.WithoutCancel(ctx)); closeErr != nil {
		if err == nil {
			err = closeErr
		} else {
			p.log().Errorf("[buildhooks] %v", closeErr)
		}
	}
	return err
}

func (p *Pipeline) runCycle(ctx context.Context, changed []string, opts WatchOptions) {
	err := p.Cycle(ctx, true)
	switch {
	case err == nil:
		p.log().Infof("[buildhooks] Build cycle finished")
	case ctx.Err() != nil:
		p.log().Debugf("[buildhooks] build cycle cancelled: %v", err)
	default:
		p.log().Errorf("[buildhooks] Build cycle failed: %v", err)
	}
	if opts.OnCycle != nil {
		opts.OnCycle(changed, err)
	}
}

// watchTree tracks the directories registered with the watcher
type watchTree struct {
	w      *fsnotify.Watcher
	ignore []string
	dirs   *xsync.Map[string, bool]
}

// add registers path. Directories are walked so that every subdirectory
// that is not ignored is watched too.
func (t *watchTree) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return t.watch(path)
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if t.ignored(p) {
			return filepath.SkipDir
		}
		return t.watch(p)
	})
}

func (t *watchTree) watch(path string) error {
	if isSet, ok := t.dirs.Load(path); ok && isSet {
		return nil
	}
	if err := t.w.Add(path); err != nil {
		return err
	}
	t.dirs.Store(path, true)
	return nil
}

// ignored reports whether any element of path is an ignored directory name
func (t *watchTree) ignored(path string) bool {
	for _, elem := range strings.Split(filepath.ToSlash(path), "/") {
		for _, name := range t.ignore {
			if elem == name {
				return true
			}
		}
	}
	return false
}
