package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bherrors "github.com/lightfastai/buildhooks/internal/errors"
)

// fakeExec records the order in which command tasks are started
type fakeExec struct {
	mu      sync.Mutex
	started []string

	// fail maps a task's text to the error it ends with
	fail map[string]error
	// gate holds back completion of a started task until closed
	gate map[string]chan struct{}
}

func (f *fakeExec) record(t Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, t.String())
}

func (f *fakeExec) Started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.started))
	copy(out, f.started)
	return out
}

func (f *fakeExec) Run(_ context.Context, t Task) error {
	f.record(t)
	return f.fail[t.String()]
}

func (f *fakeExec) Start(_ context.Context, t Task) *Pending {
	f.record(t)
	gate := f.gate[t.String()]
	err := f.fail[t.String()]
	return Go(func() error {
		if gate != nil {
			<-gate
		}
		return err
	})
}

func newTestManager(cfg Config, exec *fakeExec) *Manager {
	return NewManager(cfg, &Runner{Exec: exec})
}

// fired reports whether a once-only phase of m has been claimed
func fired(m *Manager, phase Phase) bool {
	e, ok := m.entries[phase]
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fired
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{BeforeNormalRun, "beforeNormalRun"},
		{BeforeBuild, "beforeBuild"},
		{BuildStart, "buildStart"},
		{BuildEnd, "buildEnd"},
		{BuildError, "buildError"},
		{WatchRun, "watchRun"},
		{DoneWatch, "doneWatch"},
		{AfterDone, "afterDone"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.phase.String(); got != tt.want {
				t.Errorf("Phase.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPhase_IsValid(t *testing.T) {
	for _, p := range Phases() {
		if !p.IsValid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if len(Phases()) != 8 {
		t.Errorf("expected 8 phases, got %d", len(Phases()))
	}
	if Phase("").IsValid() || Phase("onFailedBuild").IsValid() {
		t.Error("unknown phases should be invalid")
	}
}

func TestManager_Fire_NoHooks(t *testing.T) {
	exec := &fakeExec{}
	m := newTestManager(Config{}, exec)

	for _, p := range Phases() {
		require.NoError(t, m.Fire(context.Background(), p))
	}
	assert.Empty(t, exec.Started())
}

func TestManager_Fire_InvalidPhase(t *testing.T) {
	m := newTestManager(Config{}, &fakeExec{})

	err := m.Fire(context.Background(), Phase("invalid"))

	assert.Error(t, err)
}

func TestManager_Once(t *testing.T) {
	exec := &fakeExec{}
	m := newTestManager(Config{Hooks: map[Phase]Descriptor{
		BeforeBuild: Declaration{Scripts: []Task{Command("echo once")}, Blocking: true, Once: true},
		BuildEnd:    Shorthand("echo always"),
	}}, exec)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.BuildStart(context.Background(), false))
		require.NoError(t, m.BuildEnd(context.Background(), nil))
	}

	assert.Equal(t, []string{"echo once", "echo always", "echo always", "echo always"}, exec.Started())
	assert.True(t, fired(m, BeforeBuild))
	assert.False(t, fired(m, BuildEnd))
}

func TestManager_OnceUnderConcurrentFiring(t *testing.T) {
	var calls atomic.Int32
	block := make(chan struct{})
	m := newTestManager(Config{Hooks: map[Phase]Descriptor{
		BeforeBuild: Declaration{
			Scripts: []Task{Func(func(context.Context) error {
				calls.Add(1)
				<-block
				return nil
			})},
			Blocking: true,
			Once:     true,
		},
	}}, &fakeExec{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Fire(context.Background(), BeforeBuild)
		}()
	}

	// The two losing firings return immediately; only the winner blocks.
	for calls.Load() == 0 {
		runtime.Gosched()
	}
	close(block)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestManager_ParallelBlockingFailsBeforeAnyTask(t *testing.T) {
	exec := &fakeExec{}
	m := newTestManager(Config{Hooks: map[Phase]Descriptor{
		BuildEnd: Declaration{Scripts: []Task{Command("echo a"), Command("echo b")}, Parallel: true, Blocking: true},
	}}, exec)

	err := m.BuildEnd(context.Background(), nil)

	require.Error(t, err)
	assert.True(t, bherrors.Is(err, bherrors.ErrInvalidTaskSet))
	assert.Empty(t, exec.Started())

	assert.Error(t, m.Validate())
}

// lineLog keeps every formatted log line
type lineLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *lineLog) Infof(format string, args ...interface{})  { l.add(format, args...) }
func (l *lineLog) Warnf(format string, args ...interface{})  { l.add(format, args...) }
func (l *lineLog) Errorf(format string, args ...interface{}) { l.add(format, args...) }
func (l *lineLog) Debugf(format string, args ...interface{}) { l.add(format, args...) }

func TestManager_ParallelBlockingOnceFailsEveryTime(t *testing.T) {
	exec := &fakeExec{}
	log := &lineLog{}
	m := NewManager(Config{Hooks: map[Phase]Descriptor{
		BuildEnd: Declaration{Scripts: []Task{Command("echo a")}, Parallel: true, Blocking: true, Once: true},
	}}, &Runner{Exec: exec, Log: log})

	for i := 0; i < 2; i++ {
		err := m.Fire(context.Background(), BuildEnd)
		require.Error(t, err, "firing %d", i+1)
		assert.True(t, bherrors.Is(err, bherrors.ErrInvalidTaskSet), "firing %d", i+1)
	}

	assert.False(t, fired(m, BuildEnd))
	assert.Empty(t, exec.Started())
	assert.Empty(t, log.lines, "nothing is announced for a set that cannot run")
}

func TestManager_BuildErrorSelection(t *testing.T) {
	exec := &fakeExec{}
	m := newTestManager(Config{Hooks: map[Phase]Descriptor{
		BuildEnd:   Shorthand("echo end"),
		BuildError: Shorthand("echo error"),
	}}, exec)

	require.NoError(t, m.BuildEnd(context.Background(), errors.New("compile failed")))
	assert.Equal(t, []string{"echo error"}, exec.Started())

	require.NoError(t, m.BuildEnd(context.Background(), nil))
	assert.Equal(t, []string{"echo error", "echo end"}, exec.Started())
}

func TestManager_BuildStartBranches(t *testing.T) {
	tests := []struct {
		name  string
		watch bool
		want  []string
	}{
		{"normal run", false, []string{"echo normal", "echo before"}},
		{"watch run", true, []string{"echo watch", "echo before"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExec{}
			m := newTestManager(Config{Hooks: map[Phase]Descriptor{
				BeforeNormalRun: Shorthand("echo normal"),
				WatchRun:        Shorthand("echo watch"),
				BeforeBuild:     Shorthand("echo before"),
			}}, exec)

			require.NoError(t, m.BuildStart(context.Background(), tt.watch))
			assert.Equal(t, tt.want, exec.Started())
		})
	}
}

func TestManager_BuildStartStopsOnFailure(t *testing.T) {
	m := newTestManager(Config{Hooks: map[Phase]Descriptor{
		BeforeNormalRun: Declaration{
			Scripts:  []Task{Func(func(context.Context) error { return errors.New("nope") })},
			Blocking: true,
		},
		BeforeBuild: Shorthand("echo before"),
	}}, &fakeExec{})
	exec := m.runner.Exec.(*fakeExec)

	err := m.BuildStart(context.Background(), false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "beforeNormalRun")
	assert.Empty(t, exec.Started())
}

func TestManager_EntryPointsMapToPhases(t *testing.T) {
	var order []string
	record := func(name string) Descriptor {
		return Declaration{
			Scripts: []Task{Func(func(context.Context) error {
				order = append(order, name)
				return nil
			})},
			Blocking: true,
		}
	}
	m := newTestManager(Config{Hooks: map[Phase]Descriptor{
		BeforeNormalRun: record("beforeNormalRun"),
		BeforeBuild:     record("beforeBuild"),
		BuildStart:      record("buildStart"),
		BuildEnd:        record("buildEnd"),
		BuildError:      record("buildError"),
		WatchRun:        record("watchRun"),
		DoneWatch:       record("doneWatch"),
		AfterDone:       record("afterDone"),
	}}, &fakeExec{})
	ctx := context.Background()

	require.NoError(t, m.BuildStart(ctx, false))
	require.NoError(t, m.ResolveID(ctx))
	require.NoError(t, m.BuildEnd(ctx, nil))
	require.NoError(t, m.CloseBundle(ctx))
	require.NoError(t, m.CloseWatcher(ctx))

	assert.Equal(t, []string{"beforeNormalRun", "beforeBuild", "buildStart", "buildEnd", "afterDone", "doneWatch"}, order)
}

func TestManager_DevReset(t *testing.T) {
	exec := &fakeExec{}
	m := newTestManager(Config{
		Dev: true,
		Hooks: map[Phase]Descriptor{
			BuildStart: Shorthand("echo first"),
			BuildEnd:   Declaration{Scripts: []Task{Command("echo once")}, Once: true},
		},
	}, exec)
	ctx := context.Background()

	require.NoError(t, m.ResolveID(ctx))
	require.NoError(t, m.ResolveID(ctx))
	require.NoError(t, m.BuildEnd(ctx, nil))
	require.NoError(t, m.BuildEnd(ctx, nil))

	assert.Equal(t, []string{"echo first", "echo once"}, exec.Started())
	assert.True(t, m.TaskSet(BuildStart).Empty())
	assert.True(t, m.TaskSet(BuildEnd).Empty())
	assert.True(t, fired(m, BuildEnd))
}

func TestManager_DevResetKeepsFailedHookArmed(t *testing.T) {
	exec := &fakeExec{fail: map[string]error{"make": errors.New("exit status 2")}}
	m := newTestManager(Config{
		Dev:   true,
		Hooks: map[Phase]Descriptor{BuildEnd: Shorthand("make")},
	}, exec)

	require.Error(t, m.BuildEnd(context.Background(), nil))
	assert.False(t, m.TaskSet(BuildEnd).Empty())
}

func TestManager_DoesNotRetainDescriptors(t *testing.T) {
	scripts := []Task{Command("echo a")}
	cfg := Config{Hooks: map[Phase]Descriptor{BuildEnd: Declaration{Scripts: scripts, Once: true}}}

	first := newTestManager(cfg, &fakeExec{})
	second := newTestManager(cfg, &fakeExec{})
	scripts[0] = Command("echo mutated")

	require.NoError(t, first.BuildEnd(context.Background(), nil))
	assert.True(t, fired(first, BuildEnd))
	assert.False(t, fired(second, BuildEnd), "once-state must not be shared between managers")
	assert.Equal(t, "echo a", second.TaskSet(BuildEnd).Tasks[0].String())
}

func TestManager_BuildEndMarkerFile(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "out", "run.txt")
	m := newTestManager(Config{Hooks: map[Phase]Descriptor{
		BuildEnd: Declaration{
			Scripts: []Task{Func(func(context.Context) error {
				if err := os.MkdirAll(filepath.Dir(marker), 0o755); err != nil {
					return err
				}
				return os.WriteFile(marker, []byte("Hey there!"), 0o644)
			})},
			Blocking: true,
		},
	}}, &fakeExec{})

	require.NoError(t, m.BuildEnd(context.Background(), nil))

	_, err := os.Stat(marker)
	assert.NoError(t, err, "marker file should exist after the hook fired")
}

func TestManager_TaskSetUnknownPhase(t *testing.T) {
	m := newTestManager(Config{}, &fakeExec{})
	assert.True(t, m.TaskSet(Phase("nope")).Empty())
	assert.False(t, fired(m, Phase("nope")))
}

func TestManager_NilRunnerLogsNothing(t *testing.T) {
	m := NewManager(Config{Hooks: map[Phase]Descriptor{
		BuildEnd: Declaration{Scripts: []Task{Func(func(context.Context) error { return nil })}, Blocking: true},
	}}, nil)

	assert.NoError(t, m.BuildEnd(context.Background(), nil))
}

func ExampleManager() {
	m := NewManager(Config{Hooks: map[Phase]Descriptor{
		BuildEnd: Declaration{
			Scripts: []Task{Func(func(context.Context) error {
				fmt.Println("bundle written")
				return nil
			})},
			Blocking: true,
		},
	}}, &Runner{})

	_ = m.BuildEnd(context.Background(), nil)
	// Output: bundle written
}
