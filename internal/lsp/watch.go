package lsp

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"glitchls/internal/project"
)

// configWatchDelay coalesces the bursts of events editors produce for one
// save.
const configWatchDelay = 100 * time.Millisecond

// configWatcher calls onChange when a watched .glitch.toml is written,
// created, removed or renamed. Directories are watched rather than files so
// that replace-on-save keeps working.
type configWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onChange func()

	mu      sync.Mutex
	dirs    map[string]struct{}
	pending *time.Timer
}

func newConfigWatcher(logger *slog.Logger, onChange func()) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &configWatcher{
		watcher:  w,
		logger:   logger,
		onChange: onChange,
		dirs:     make(map[string]struct{}),
	}, nil
}

// Watch starts watching the directory holding configPath. Repeated calls are
// cheap.
func (w *configWatcher) Watch(configPath string) {
	dir := filepath.Dir(configPath)
	w.mu.Lock()
	if _, ok := w.dirs[dir]; ok {
		w.mu.Unlock()
		return
	}
	w.dirs[dir] = struct{}{}
	w.mu.Unlock()

	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("Failed to watch config directory",
			slog.String("path", dir),
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Debug("Watching config file", slog.String("path", configPath))
}

// Start processes events until ctx is done or the watcher is stopped.
func (w *configWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", slog.String("error", err.Error()))
		case <-ctx.Done():
			return
		}
	}
}

func (w *configWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != project.FileName {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.logger.Info("Config file changed", slog.String("path", event.Name))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(configWatchDelay, w.onChange)
}

// Stop closes the underlying watcher.
func (w *configWatcher) Stop() error {
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
