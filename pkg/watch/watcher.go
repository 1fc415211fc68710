// Package watch re-runs analysis when snapshot files change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/ilscan/pkg/config"
)

// Callback receives the snapshot files that changed since the last call.
// Calls never overlap.
type Callback func(ctx context.Context, changed []string)

// Watcher monitors a directory tree for snapshot changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	root      string
	logger    *slog.Logger
	callback  Callback
	mu        sync.Mutex
	pending   map[string]time.Time
}

// NewWatcher creates a watcher for root. A debounce of zero waits 500ms
// after the last write to a file before reporting it.
func NewWatcher(root string, cfg *config.Config, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  debounce,
		root:      root,
		logger:    slog.Default(),
		pending:   make(map[string]time.Time),
	}, nil
}

// SetCallback sets the function to call when snapshots change.
func (w *Watcher) SetCallback(cb Callback) {
	w.callback = cb
}

// SetLogger replaces the default logger.
func (w *Watcher) SetLogger(l *slog.Logger) {
	w.logger = l
}

// Start watches until ctx is done and returns ctx.Err().
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Info("watching for snapshot changes", "root", w.root, "dirs", len(w.fsWatcher.WatchList()))

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

// addTree watches dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel := w.rel(path); rel != "." && w.config.ShouldExclude(rel) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// matches reports whether path is a non-excluded snapshot file.
func (w *Watcher) matches(path string) bool {
	rel := w.rel(path)
	if w.config.ShouldExclude(rel) {
		return false
	}
	for _, p := range w.config.Scan.Patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("cannot watch new directory", "dir", event.Name, "error", err)
			}
			return
		}
	}

	if !w.matches(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// processPending removes and returns the files that have been stable for
// the debounce period, sorted.
func (w *Watcher) processPending(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, lastMod := range w.pending {
		if now.Sub(lastMod) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	slices.Sort(ready)
	return ready
}

func (w *Watcher) flush(ctx context.Context, now time.Time) {
	ready := w.processPending(now)
	if len(ready) == 0 || w.callback == nil {
		return
	}
	w.logger.Info("snapshots changed, re-running analysis", "files", len(ready))
	w.callback(ctx, ready)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the watched directories.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
