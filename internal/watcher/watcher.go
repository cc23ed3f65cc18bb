// Package watcher reports changes to the files the worker depends on:
// settings, the exit-reason policy and the SQLite database.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Kind classifies a change.
type Kind string

const (
	Modified Kind = "modified"
	Removed  Kind = "removed"
)

// Change is one debounced change of a watched file.
type Change struct {
	Path string
	Kind Kind
}

// Watcher watches a set of files through their parent directories, since
// fsnotify cannot watch a file that does not exist yet. Bursts of events on
// one file collapse into a single Change after the debounce delay.
type Watcher struct {
	ctx      context.Context
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	onChange func(Change)
	targets  map[string]bool
	timers   map[string]*time.Timer
	pending  map[string]Kind
	debounce time.Duration
	mu       sync.Mutex
	running  bool
}

// New creates a watcher for targets. onChange runs on its own goroutine.
func New(onChange func(Change), targets ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		ctx:      ctx,
		cancel:   cancel,
		watcher:  fsw,
		onChange: onChange,
		targets:  make(map[string]bool, len(targets)),
		timers:   make(map[string]*time.Timer),
		pending:  make(map[string]Kind),
		debounce: 200 * time.Millisecond,
	}
	for _, t := range targets {
		if t != "" {
			w.targets[filepath.Clean(t)] = true
		}
	}
	return w, nil
}

// Start begins watching. Parents that do not exist yet are skipped.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	seen := make(map[string]bool)
	for t := range w.targets {
		dir := filepath.Dir(t)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := w.addWatch(dir); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to add watch")
		}
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher and drops pending changes.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	w.cancel()
	for _, t := range w.timers {
		t.Stop()
	}
	return w.watcher.Close()
}

func (w *Watcher) addWatch(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	return w.watcher.Add(dir)
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)
			if !w.targets[path] {
				continue
			}
			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.schedule(path, Removed)
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				w.schedule(path, Modified)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

// schedule restarts the debounce timer of path. A later Modified (the file
// was recreated) replaces a pending Removed.
func (w *Watcher) schedule(path string, kind Kind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}

	w.pending[path] = kind
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	kind, ok := w.pending[path]
	delete(w.pending, path)
	delete(w.timers, path)
	running := w.running
	w.mu.Unlock()

	if !ok || !running {
		return
	}
	log.Info().Str("path", path).Str("kind", string(kind)).Msg("Watched file changed")
	if w.onChange != nil {
		w.onChange(Change{Path: path, Kind: kind})
	}
}
