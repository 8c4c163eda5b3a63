package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debouncer coalesces bursts of file-system events into batches. A batch is
// emitted once no event has arrived for the wait time. Chmod-only events are
// skipped.
type Debouncer struct {
	wait   time.Duration
	ignore func(path string) bool
}

// NewDebouncer returns a Debouncer. ignore may be nil.
func NewDebouncer(wait time.Duration, ignore func(path string) bool) *Debouncer {
	if ignore == nil {
		ignore = func(string) bool { return false }
	}
	return &Debouncer{wait: wait, ignore: ignore}
}

// Run reads events until ctx is done or events is closed, sending the
// sorted, de-duplicated names of each batch on the returned channel. Events
// that arrive while a batch is waiting to be received are merged into it.
func (d *Debouncer) Run(ctx context.Context, events <-chan fsnotify.Event) <-chan []string {
	out := make(chan []string)

	go func() {
		defer close(out)

		var (
			timer   *time.Timer
			timerC  <-chan time.Time
			pending = make(map[string]struct{})
			ready   = make(map[string]struct{})
			batch   []string
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			var sendC chan<- []string
			if len(batch) > 0 {
				sendC = out
			}

			select {
			case <-ctx.Done():
				return

			case event, ok := <-events:
				if !ok {
					return
				}
				if event.Op == fsnotify.Chmod || d.ignore(event.Name) {
					continue
				}
				pending[event.Name] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(d.wait)
				} else {
					timer.Reset(d.wait)
				}
				timerC = timer.C

			case <-timerC:
				timerC = nil
				for name := range pending {
					ready[name] = struct{}{}
				}
				pending = make(map[string]struct{})
				batch = sortedKeys(ready)

			case sendC <- batch:
				ready = make(map[string]struct{})
				batch = nil
			}
		}
	}()

	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
