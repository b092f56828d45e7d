// Package watch follows an ontology file on disk and turns each saved
// version into an incremental delta against the previous one.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"saturn/internal/incremental"
	"saturn/internal/logging"
	"saturn/internal/ontology"
)

// Handler receives the delta between two versions of the watched file.
// A handler error keeps the previous version as the baseline, so the next
// reload retries the same changes.
type Handler func(ctx context.Context, delta incremental.Delta) error

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Reloads       int
	Deltas        int
	ParseErrors   int
	HandlerErrors int
	LastEventTime time.Time
	LastEventType string
}

// Watcher watches one ontology file. Events are debounced so an editor
// writing the file in several steps yields a single reload.
type Watcher struct {
	mu          sync.RWMutex
	reloadMu    sync.Mutex // serializes reloads; guards current
	watcher     *fsnotify.Watcher
	path        string
	current     []ontology.Axiom
	handler     Handler
	dirty       bool
	lastEvent   time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// New creates a watcher for path. initial is the version the caller has
// already loaded; deltas are computed against it.
func New(path string, initial []ontology.Axiom, debounce time.Duration, handler Handler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &Watcher{
		watcher:     fw,
		path:        filepath.Clean(path),
		current:     initial,
		handler:     handler,
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// editors often replace the file, so watch its directory
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logging.Watch("watching %s", w.path)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		logging.WatchError("error closing watcher: %v", err)
	}
	logging.Watch("stopped watching %s", w.path)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("watcher error: %v", err)

		case <-debounceTicker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0:
		eventType = "delete"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return
	}

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventType = eventType
	w.dirty = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	settled := w.dirty && time.Since(w.lastEvent) >= w.debounceDur
	if settled {
		w.dirty = false
	}
	w.mu.Unlock()

	if settled {
		if err := w.Reload(ctx); err != nil {
			logging.WatchError("reload of %s failed: %v", w.path, err)
		}
	}
}

// Reload reads the file now and hands any change to the handler. A file
// that is missing or does not parse leaves the baseline untouched.
func (w *Watcher) Reload(ctx context.Context) error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	onto, err := ontology.Load(w.path)
	if err != nil {
		w.count(func(s *Stats) { s.ParseErrors++ })
		return err
	}
	w.count(func(s *Stats) { s.Reloads++ })

	added, removed := ontology.Diff(w.current, onto.Axioms)
	delta := incremental.Delta{Add: added, Remove: removed}
	if delta.Empty() {
		logging.Get(logging.CategoryWatch).Debug("%s: no axiom changes", w.path)
		return nil
	}
	logging.Watch("%s: %d axioms added, %d removed", w.path, len(added), len(removed))

	if err := w.handler(ctx, delta); err != nil {
		w.count(func(s *Stats) { s.HandlerErrors++ })
		return fmt.Errorf("failed to apply changes: %w", err)
	}
	w.count(func(s *Stats) { s.Deltas++ })
	w.current = onto.Axioms
	return nil
}

func (w *Watcher) count(fn func(*Stats)) {
	w.mu.Lock()
	fn(&w.stats)
	w.mu.Unlock()
}

// GetStats returns the current watcher statistics.
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
