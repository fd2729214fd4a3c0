// Package watch re-runs a script whenever its source file changes on
// disk, for a "nimmy run --watch" development loop.
package watch

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay coalesces the burst of events some editors fire for a
// single atomic save into one re-run.
const DebounceDelay = 100 * time.Millisecond

// Watcher re-runs Run every time path changes, until Stop is called.
type Watcher struct {
	path    string
	run     func(path string) error
	onError func(error)
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New builds a Watcher for path; errors setting up the watcher are
// returned. run is invoked once when Run starts and again after every
// debounced change; onError reports errors from the underlying watcher
// and errors returned from run (nil means errors are dropped silently).
func New(path string, run func(path string) error, onError func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch: watching directory %s: %w", dir, err)
	}

	if onError == nil {
		onError = func(error) {}
	}

	return &Watcher{
		path:    path,
		run:     run,
		onError: onError,
		watcher: fw,
		done:    make(chan struct{}),
	}, nil
}

// Run performs the initial run, then blocks watching for changes until
// Stop is called.
func (w *Watcher) Run() error {
	if err := w.run(w.path); err != nil {
		w.onError(err)
	}

	filename := filepath.Base(w.path)
	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(DebounceDelay, func() {
				if err := w.run(w.path); err != nil {
					w.onError(err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.onError(fmt.Errorf("watch: %w", err))

		case <-w.done:
			return nil
		}
	}
}

// Stop closes the underlying watcher and unblocks Run.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}
