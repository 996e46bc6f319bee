package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultWatchDebounce coalesces editor write bursts into one reload
const DefaultWatchDebounce = 200 * time.Millisecond

// Watcher reloads Properties when the config file or .env changes on disk.
// Directories are watched rather than files so that editors which replace
// files by rename are still seen.
type Watcher struct {
	props    *Properties
	watcher  *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	logger   *zap.Logger
	onReload func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for every file props reads from. onReload,
// if set, runs after each successful reload.
func NewWatcher(props *Properties, debounce time.Duration, onReload func(), logger *zap.Logger) (*Watcher, error) {
	if props == nil {
		return nil, errors.New("watcher needs properties")
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		props:    props,
		watcher:  fsw,
		files:    make(map[string]bool),
		debounce: debounce,
		logger:   logger,
		onReload: onReload,
	}

	dirs := make(map[string]bool)
	for _, file := range props.Files() {
		w.files[file] = true
		dirs[filepath.Dir(file)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run processes file events until ctx is cancelled or the watcher is closed
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("Config watcher started", zap.Int("files", len(w.files)))
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Config file event",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Config watcher error", zap.Error(err))
		}
	}
}

// Close releases the underlying watcher and makes Run return
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !w.files[absPath(event.Name)] {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) reload() {
	if err := w.props.Reload(); err != nil {
		w.logger.Warn("Config reload failed, keeping previous values", zap.Error(err))
		return
	}
	w.logger.Info("Config reloaded")
	if w.onReload != nil {
		w.onReload()
	}
}
