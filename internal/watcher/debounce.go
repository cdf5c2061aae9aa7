package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is how long repeated notifications for one path are
// collapsed into the first.
const DefaultDebounceWindow = 5 * time.Second

// Debouncer accepts the first notification for a path and rejects repeats
// until the window has elapsed since that accepted notification. It is safe
// for concurrent use by several workers.
type Debouncer struct {
	window time.Duration

	mu       sync.Mutex
	accepted map[string]time.Time
}

// NewDebouncer creates a Debouncer. A window of zero or less accepts every
// notification.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:   window,
		accepted: make(map[string]time.Time),
	}
}

// Accept reports whether a notification for path observed at the given time
// should be processed. Entries older than the window are evicted on every call.
func (d *Debouncer) Accept(path string, at time.Time) bool {
	if d.window <= 0 {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for p, last := range d.accepted {
		if at.Sub(last) >= d.window {
			delete(d.accepted, p)
		}
	}

	if last, ok := d.accepted[path]; ok && at.Sub(last) < d.window {
		return false
	}
	d.accepted[path] = at
	return true
}

// Forget drops any record of path so the next notification is accepted.
func (d *Debouncer) Forget(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.accepted, path)
}

// Len returns the number of paths inside their window. Useful in tests.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.accepted)
}

// Window returns the configured debounce window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}
