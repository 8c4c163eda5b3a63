package execext

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bherrors "github.com/lightfastai/buildhooks/internal/errors"
	"github.com/lightfastai/buildhooks/internal/hooks"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+": "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Infof(format string, args ...interface{})  { l.add("info", format, args...) }
func (l *recordingLogger) Warnf(format string, args ...interface{})  { l.add("warn", format, args...) }
func (l *recordingLogger) Errorf(format string, args ...interface{}) { l.add("error", format, args...) }
func (l *recordingLogger) Debugf(format string, args ...interface{}) { l.add("debug", format, args...) }

func (l *recordingLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func newTestRunner(opts Options) (*Runner, *safeBuffer, *safeBuffer, *recordingLogger) {
	stdout, stderr := &safeBuffer{}, &safeBuffer{}
	log := &recordingLogger{}
	opts.Stdout = stdout
	opts.Stderr = stderr
	opts.Log = log
	return New(opts), stdout, stderr, log
}

func sh(script string) hooks.Task {
	return hooks.Structured(hooks.Script{Command: "sh", Args: []string{"-c", script}})
}

func TestRun_Direct(t *testing.T) {
	r, stdout, _, _ := newTestRunner(Options{Logging: true})

	err := r.Run(context.Background(), hooks.Command("echo hello world"))

	require.NoError(t, err)
	assert.Equal(t, "hello world\n", stdout.String())
}

func TestRun_DirectWithoutLoggingDiscardsOutput(t *testing.T) {
	r, stdout, _, _ := newTestRunner(Options{Logging: false})

	require.NoError(t, r.Run(context.Background(), hooks.Command("echo hidden")))
	assert.Empty(t, stdout.String())
}

func TestRun_DirectNonZeroExitIsLoggedNotReturned(t *testing.T) {
	r, _, _, log := newTestRunner(Options{Logging: true})

	err := r.Run(context.Background(), sh("echo oops >&2; exit 3"))

	require.NoError(t, err)
	assert.Contains(t, log.joined(), "stderr error sh -c")
	assert.Contains(t, log.joined(), "oops")
}

func TestRun_DirectSpawnError(t *testing.T) {
	r, _, _, _ := newTestRunner(Options{Logging: true})

	err := r.Run(context.Background(), hooks.Command("buildhooks-definitely-missing --flag"))

	require.Error(t, err)
	assert.True(t, bherrors.Is(err, bherrors.ErrSpawnFailed))
}

func TestRun_EnvOverlay(t *testing.T) {
	t.Setenv("BUILDHOOKS_BASE", "base")
	r, stdout, _, _ := newTestRunner(Options{
		Logging: true,
		Env:     map[string]string{"HOOK_VAR": "42", "BUILDHOOKS_BASE": "overridden"},
	})

	err := r.Run(context.Background(), sh(`printf '%s %s' "$HOOK_VAR" "$BUILDHOOKS_BASE"`))

	require.NoError(t, err)
	assert.Equal(t, "42 overridden", stdout.String())
}

func TestRunner_EnvironDoesNotLeak(t *testing.T) {
	r := New(Options{Env: map[string]string{"ONLY_IN_HOOKS": "1"}})

	_ = r.Environ()

	_, found := os.LookupEnv("ONLY_IN_HOOKS")
	assert.False(t, found, "overlay must not modify the process environment")
}

func TestRun_Safe(t *testing.T) {
	tests := []struct {
		name string
		task hooks.Task
		want string
	}{
		{"pipe", hooks.Command("echo abc | tr a z"), "zbc\n"},
		{"and list", hooks.Command(`echo "one two" && echo three`), "one two\nthree\n"},
		{"structured is quoted", hooks.Structured(hooks.Script{Command: "echo", Args: []string{"a  b", "$HOME"}}), "a  b $HOME\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, stdout, _, _ := newTestRunner(Options{Logging: true, Safe: true})

			require.NoError(t, r.Run(context.Background(), tt.task))
			assert.Equal(t, tt.want, stdout.String())
		})
	}
}

func TestRun_SafeNonZeroExitFails(t *testing.T) {
	r, _, _, _ := newTestRunner(Options{Logging: true, Safe: true})

	err := r.Run(context.Background(), hooks.Command("exit 2"))

	require.Error(t, err)
	assert.True(t, bherrors.Is(err, bherrors.ErrTaskFailed))
	code, ok := ExitCode(err)
	assert.True(t, ok)
	assert.Equal(t, 2, code)
}

func TestRun_SafeParseError(t *testing.T) {
	r, _, _, _ := newTestRunner(Options{Safe: true})

	err := r.Run(context.Background(), hooks.Command("echo 'unterminated"))

	require.Error(t, err)
	assert.True(t, bherrors.Is(err, bherrors.ErrSpawnFailed))
}

func TestRun_ShellMode(t *testing.T) {
	r, stdout, _, _ := newTestRunner(Options{Logging: true, Shell: true})

	err := r.Run(context.Background(), hooks.Structured(hooks.Script{Command: "echo", Args: []string{"kept together"}}))

	require.NoError(t, err)
	assert.Equal(t, "kept together\n", stdout.String())
}

func TestRun_Dir(t *testing.T) {
	dir := t.TempDir()
	r, stdout, _, _ := newTestRunner(Options{Logging: true, Safe: true, Dir: dir})

	require.NoError(t, r.Run(context.Background(), hooks.Command("pwd")))

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStart_Direct(t *testing.T) {
	r, stdout, _, _ := newTestRunner(Options{Logging: true})

	p := r.Start(context.Background(), hooks.Command("echo started"))

	require.NoError(t, p.Wait())
	assert.Equal(t, "started\n", stdout.String())
}

func TestStart_MergesStderrIntoStdout(t *testing.T) {
	r, stdout, stderr, _ := newTestRunner(Options{Logging: true})

	require.NoError(t, r.Start(context.Background(), sh("echo to-err >&2")).Wait())

	assert.Equal(t, "to-err\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestStart_Failure(t *testing.T) {
	tests := []struct {
		name    string
		swallow bool
		task    hooks.Task
		wantErr bherrors.ErrorType
	}{
		{"exit status propagates", false, sh("exit 1"), bherrors.ErrTaskFailed},
		{"spawn error propagates", false, hooks.Command("buildhooks-definitely-missing"), bherrors.ErrSpawnFailed},
		{"exit status swallowed", true, sh("exit 1"), 0},
		{"spawn error swallowed", true, hooks.Command("buildhooks-definitely-missing"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _, log := newTestRunner(Options{Logging: true, SwallowError: tt.swallow})

			err := r.Start(context.Background(), tt.task).Wait()

			if tt.swallow {
				assert.NoError(t, err)
				assert.Contains(t, log.joined(), "ignoring failed command")
				return
			}
			require.Error(t, err)
			assert.True(t, bherrors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestStart_Safe(t *testing.T) {
	r, stdout, _, _ := newTestRunner(Options{Logging: true, Safe: true})

	require.NoError(t, r.Start(context.Background(), hooks.Command("echo x; echo y >&2")).Wait())

	assert.Equal(t, "x\ny\n", stdout.String())
}

func TestStart_SafeFailure(t *testing.T) {
	r, _, _, _ := newTestRunner(Options{Safe: true})

	err := r.Start(context.Background(), hooks.Command("false")).Wait()

	require.Error(t, err)
	assert.True(t, bherrors.Is(err, bherrors.ErrTaskFailed))
}

func TestStart_ReturnsBeforeCompletion(t *testing.T) {
	r, _, _, _ := newTestRunner(Options{})
	release := filepath.Join(t.TempDir(), "release")

	p := r.Start(context.Background(), sh(fmt.Sprintf("while [ ! -f %q ]; do sleep 0.01; done", release)))

	select {
	case <-p.Done():
		t.Fatal("Start waited for the command to finish")
	default:
	}

	require.NoError(t, r.Run(context.Background(), hooks.Structured(hooks.Script{Command: "touch", Args: []string{release}})))
	require.NoError(t, p.Wait())
}

func TestExitCode(t *testing.T) {
	_, ok := ExitCode(fmt.Errorf("plain"))
	assert.False(t, ok)
	assert.False(t, IsExitError(nil))
}
