package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/lightfastai/buildhooks/internal/errors"
)

const (
	// DirName holds per-project runtime files, relative to the project root
	DirName = ".buildhooks"
	// LockFileName guards the watch session of a project
	LockFileName = "session.lock"
	// StateFileName records the progress of the running session
	StateFileName = "session.json"
)

// LockTimeout is how long Acquire waits for another session to exit
var LockTimeout = 2 * time.Second

// State describes a running watch session
type State struct {
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"startedAt"`
	Cycles      int       `json:"cycles"`
	Failures    int       `json:"failures"`
	LastCycleAt time.Time `json:"lastCycleAt,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
}

// Session is an exclusive watch session for one project. Only one process
// can hold it at a time.
type Session struct {
	mu        sync.Mutex
	state     State
	flock     *flock.Flock
	statePath string
}

// LockPath returns the lock file of the project at root
func LockPath(root string) string {
	return filepath.Join(root, DirName, LockFileName)
}

// StatePath returns the state file of the project at root
func StatePath(root string) string {
	return filepath.Join(root, DirName, StateFileName)
}

// Acquire takes the session lock of the project at root. It returns a
// SessionLocked error when another session still holds it after LockTimeout.
// The caller MUST call Close to release the lock.
func Acquire(ctx context.Context, root string) (*Session, error) {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	lockPath := LockPath(root)
	fileLock := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil && !stderrors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !locked {
		return nil, errors.SessionLocked(lockPath)
	}

	s := &Session{
		flock:     fileLock,
		statePath: StatePath(root),
		state: State{
			PID:       os.Getpid(),
			StartedAt: time.Now(),
		},
	}
	if err := s.save(); err != nil {
		_ = fileLock.Unlock()
		return nil, err
	}
	return s, nil
}

// Record stores the outcome of one build cycle
func (s *Session) Record(cycleErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Cycles++
	s.state.LastCycleAt = time.Now()
	s.state.LastError = ""
	if cycleErr != nil {
		s.state.Failures++
		s.state.LastError = cycleErr.Error()
	}
	return s.saveLocked()
}

// State returns a copy of the session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close removes the state file and releases the lock
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.statePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session state: %w", err)
	}
	if s.flock != nil {
		if err := s.flock.Unlock(); err != nil {
			return fmt.Errorf("failed to release session lock: %w", err)
		}
	}
	return nil
}

func (s *Session) save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked writes the state file atomically. Caller must hold s.mu.
func (s *Session) saveLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	tempFile := s.statePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	if err := os.Rename(tempFile, s.statePath); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

// ReadState loads the state of the session running for the project at
// root. ok is false when no session is running.
func ReadState(root string) (state State, ok bool, err error) {
	// #nosec G304 - path is derived from the project root
	data, err := os.ReadFile(StatePath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("failed to read session state: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, false, fmt.Errorf("corrupt session state: %w", err)
	}
	return state, true, nil
}

// Running reports whether a session currently holds the lock of the project
// at root
func Running(root string) (bool, error) {
	lockPath := LockPath(root)
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		return false, nil
	}

	probe := flock.New(lockPath)
	locked, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to probe session lock: %w", err)
	}
	if !locked {
		return true, nil
	}
	if err := probe.Unlock(); err != nil {
		return false, fmt.Errorf("failed to release session lock: %w", err)
	}
	return false, nil
}
