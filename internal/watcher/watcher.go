// Package watcher turns filesystem notifications for the monitored roots into
// created/modified events, and provides the debounce window, ignore filter and
// stability wait the dispatcher applies to them.
package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Kind is the type of change an Event reports.
type Kind string

const (
	Created  Kind = "created"
	Modified Kind = "modified"
)

// Event is a single notification for a file inside a monitored root.
type Event struct {
	Path       string
	Kind       Kind
	ObservedAt time.Time
}

// Source delivers events per monitored root. Each root has its own channel so
// a slow consumer of one root never holds up another.
type Source interface {
	Events(root string) <-chan Event
}

// ErrUnknownRoot is returned when a root was not registered with the source.
var ErrUnknownRoot = errors.New("root is not watched")

// eventBuffer is the per-root channel capacity.
const eventBuffer = 64

// FSSource is a Source backed by one fsnotify watcher per root. Watches are
// not recursive: files in subdirectories of a root are not reported.
type FSSource struct {
	logger *slog.Logger
	now    func() time.Time

	roots    []string
	watchers map[string]*fsnotify.Watcher
	events   map[string]chan Event

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewFSSource starts watching every root. Roots are made absolute; the
// returned source must be closed to release the underlying watches.
func NewFSSource(roots []string, logger *slog.Logger) (*FSSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FSSource{
		logger:   logger,
		now:      time.Now,
		watchers: make(map[string]*fsnotify.Watcher, len(roots)),
		events:   make(map[string]chan Event, len(roots)),
		done:     make(chan struct{}),
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("resolve %s: %w", root, err)
		}
		if _, dup := s.watchers[abs]; dup {
			continue
		}
		w, err := fsnotify.NewWatcher()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Add(abs); err != nil {
			w.Close()
			s.Close()
			return nil, fmt.Errorf("watch %s: %w", abs, err)
		}
		ch := make(chan Event, eventBuffer)
		s.roots = append(s.roots, abs)
		s.watchers[abs] = w
		s.events[abs] = ch

		s.wg.Add(1)
		go s.pump(abs, w, ch)
	}
	return s, nil
}

// Roots returns the absolute roots being watched, in registration order.
func (s *FSSource) Roots() []string {
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// Events returns the channel for root. The channel is closed by Close. A root
// that is not watched yields a nil channel, which blocks forever.
func (s *FSSource) Events(root string) <-chan Event {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil
	}
	ch, ok := s.events[abs]
	if !ok {
		return nil
	}
	return ch
}

// Watching reports whether root is registered.
func (s *FSSource) Watching(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if _, ok := s.events[abs]; !ok {
		return fmt.Errorf("%s: %w", abs, ErrUnknownRoot)
	}
	return nil
}

// Close stops every watch and closes the event channels.
func (s *FSSource) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		close(s.done)
		for _, w := range s.watchers {
			if err := w.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.wg.Wait()
		for _, ch := range s.events {
			close(ch)
		}
	})
	return errors.Join(errs...)
}

func (s *FSSource) pump(root string, w *fsnotify.Watcher, out chan<- Event) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			event, keep := s.translate(ev)
			if !keep {
				continue
			}
			select {
			case out <- event:
			case <-s.done:
				return
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watch error", "root", root, "error", err)
		}
	}
}

// translate maps an fsnotify event onto an Event. A rename reports the old
// name, so only the Create seen on the new name is kept. Directories are
// dropped, as are entries that vanished before they could be inspected.
func (s *FSSource) translate(ev fsnotify.Event) (Event, bool) {
	var kind Kind
	switch {
	case ev.Has(fsnotify.Create):
		kind = Created
	case ev.Has(fsnotify.Write):
		kind = Modified
	default:
		return Event{}, false
	}

	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return Event{}, false
	}
	return Event{Path: ev.Name, Kind: kind, ObservedAt: s.now()}, true
}
