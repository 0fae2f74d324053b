// Package watch reloads the schedule when its file changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce absorbs the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls OnChange once per burst of changes to one file.
//
// The parent directory is watched rather than the file, so editors that
// save by writing a temp file and renaming it over the original are seen.
type Watcher struct {
	path     string
	name     string
	debounce time.Duration
	onChange func(path string)
	logger   *slog.Logger

	// fs is set once by New. Only run reads its channels; Stop closes it
	// after run has exited.
	fs *fsnotify.Watcher

	mu      sync.Mutex
	pending bool
	due     time.Time
	running bool
	closed  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a watcher for path. debounce <= 0 uses DefaultDebounce.
func New(path string, debounce time.Duration, onChange func(path string)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return &Watcher{
		path:     abs,
		name:     filepath.Base(abs),
		debounce: debounce,
		onChange: onChange,
		logger:   slog.Default().With("component", "watch"),
		fs:       fs,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running || w.closed {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.fs.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching schedule", "path", w.path)

	go w.run(ctx, w.fs)
	return nil
}

// Stop ends the watch and waits for the loop to exit. Safe to call more
// than once, and before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	alreadyClosed := w.closed
	w.running = false
	w.closed = true
	w.mu.Unlock()

	if alreadyClosed {
		return
	}
	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.fs.Close(); err != nil {
		w.logger.Error("error closing watcher", "error", err)
	}
}

func (w *Watcher) run(ctx context.Context, fs *fsnotify.Watcher) {
	defer close(w.doneCh)

	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Base(ev.Name) != w.name {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return
	}
	w.logger.Debug("schedule changed", "op", ev.Op.String())

	w.mu.Lock()
	w.pending = true
	w.due = time.Now().Add(w.debounce)
	w.mu.Unlock()
}

func (w *Watcher) flush(now time.Time) {
	w.mu.Lock()
	fire := w.pending && !now.Before(w.due)
	if fire {
		w.pending = false
	}
	w.mu.Unlock()

	if fire {
		w.logger.Info("schedule file changed, reloading", "path", w.path)
		w.onChange(w.path)
	}
}
