package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/niksmo/gallery/internal/core/scheduler"
)

// DefaultWatchDebounce collapses the burst of events an editor emits on save.
const DefaultWatchDebounce = 500 * time.Millisecond

// A FileWatcher calls onChange once a watched catalog file settles after a
// change.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce *scheduler.Debouncer[string]
}

// NewFileWatcher watches the directory of path, so files replaced by rename
// are still observed.
func NewFileWatcher(
	path string, wait time.Duration, clock scheduler.Clock, onChange func(path string),
) (*FileWatcher, error) {
	const op = "NewFileWatcher"

	if onChange == nil {
		panic(op + ": onChange is nil") // develop mistake
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if wait <= 0 {
		wait = DefaultWatchDebounce
	}

	return &FileWatcher{
		watcher:  w,
		path:     abs,
		debounce: scheduler.NewDebouncer(clock, wait, onChange),
	}, nil
}

// Run dispatches file events until ctx is done or the watcher is closed.
func (fw *FileWatcher) Run(ctx context.Context) error {
	const op = "FileWatcher.Run"
	log := slog.With("op", op, "path", fw.path)

	log.Info("watching")
	for {
		select {
		case <-ctx.Done():
			log.Info("stopped")
			return nil
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if fw.relevant(ev) {
				log.Debug("catalog file changed", "event", ev.Op.String())
				fw.debounce.Call(fw.path)
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "err", err)
		}
	}
}

func (fw *FileWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != fw.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (fw *FileWatcher) Close() error {
	const op = "FileWatcher.Close"

	fw.debounce.Stop()
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
