// Package watch re-runs a callback when configuration files change.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nxtgo/nxt-orm/internal/debug"
)

// DefaultDebounce is the quiet period after the last write before the callback runs.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a set of files for changes
type Watcher struct {
	files    map[string]bool
	callback func() error
	watcher  *fsnotify.Watcher
	debounce time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches files, which need not exist yet: their directories are
// watched instead.
func NewWatcher(files []string, debounce time.Duration, callback func() error) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		files:    make(map[string]bool),
		callback: callback,
		watcher:  watcher,
		debounce: debounce,
		done:     make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		w.files[absPath] = true

		dir := filepath.Dir(absPath)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch directory: %w", err)
		}
		dirs[dir] = true
	}
	return w, nil
}

// Start runs the callback once, then again after every debounced change.
func (w *Watcher) Start() error {
	if err := w.callback(); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	go func() {
		debounceTimer := time.NewTimer(w.debounce)
		debounceTimer.Stop()
		var debounceCh <-chan time.Time

		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				eventPath, err := filepath.Abs(event.Name)
				if err == nil && w.files[eventPath] {
					debounceTimer.Reset(w.debounce)
					debounceCh = debounceTimer.C
				}

			case <-debounceCh:
				debounceCh = nil
				if err := w.callback(); err != nil {
					debug.Error("Watch callback failed", "error", err)
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				debug.Error("Watch error", "error", err)

			case <-w.done:
				return
			}
		}
	}()

	return nil
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
