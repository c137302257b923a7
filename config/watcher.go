package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of events to settle.
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher watches the configuration file and triggers reloads.
// It watches the parent directory so that atomic replaces (editors, ConfigMap
// symlink swaps) are seen as well as in-place writes.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewFileWatcher creates a watcher for path. A zero debounce uses DefaultDebounce.
func NewFileWatcher(path string, debounce time.Duration, logger *slog.Logger) (*FileWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return &FileWatcher{
		path:     abs,
		watcher:  w,
		logger:   logger.With(slog.String("component", "config_watcher")),
		debounce: debounce,
	}, nil
}

// Watch blocks until ctx is done, calling onReload after changes to the file settle.
// Reload errors are logged and watching continues.
func (fw *FileWatcher) Watch(ctx context.Context, onReload func() error) error {
	defer fw.close()

	dir := filepath.Dir(fw.path)
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	fw.logger.Info("config watcher started", slog.String("path", fw.path), slog.Int64("debounce_ms", fw.debounce.Milliseconds()))

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !fw.relevant(event) {
				continue
			}
			fw.logger.Debug("config file event", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			fw.trigger(func() {
				if err := onReload(); err != nil {
					fw.logger.Error("config reload failed", slog.Any("err", err))
				}
			})

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			fw.logger.Error("config watcher error", slog.Any("err", err))
		}
	}
}

func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	// ConfigMap mounts swap a ..data symlink rather than touching the file itself.
	return name == fw.path || filepath.Base(name) == "..data"
}

func (fw *FileWatcher) trigger(fn func()) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, fn)
}

func (fw *FileWatcher) close() {
	fw.mu.Lock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.mu.Unlock()
	if err := fw.watcher.Close(); err != nil {
		fw.logger.Warn("failed to close watcher", slog.Any("err", err))
	}
}
