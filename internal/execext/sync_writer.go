package execext

import (
	"io"
	"os"
	"sync"
)

// SyncWriter serializes writes to w. Parallel commands share the runner's
// writers, and most writers are not safe for concurrent use.
type SyncWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

// outputMu is shared by every SyncWriter so stdout and stderr lines do not
// interleave mid-write when they end up in the same place
var outputMu sync.Mutex

// NewSyncWriter wraps w. Files are returned as they are so child processes
// inherit the descriptor directly.
func NewSyncWriter(w io.Writer) io.Writer {
	if _, ok := w.(*os.File); ok {
		return w
	}
	if _, ok := w.(*SyncWriter); ok {
		return w
	}
	return &SyncWriter{w: w, mu: &outputMu}
}

// Write implements io.Writer with synchronized access
func (sw *SyncWriter) Write(p []byte) (n int, err error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}
