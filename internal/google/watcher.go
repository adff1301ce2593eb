package google

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teemow/gmail-send-mcp/internal/logging"
)

// DefaultDebounceWindow coalesces the burst of events an atomic rewrite
// produces (create temp, chmod, rename).
const DefaultDebounceWindow = 200 * time.Millisecond

// debouncer runs the callback once no trigger has arrived for duration.
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
}

func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, callback)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// TokenWatcher calls onChange when a token file is created, rewritten or
// removed. It watches the parent directory so atomic replacements are seen.
type TokenWatcher struct {
	watcher   *fsnotify.Watcher
	path      string
	onChange  func()
	debouncer *debouncer
	logger    *slog.Logger
}

// NewTokenWatcher starts watching the directory containing path. The
// directory is created if needed.
func NewTokenWatcher(path string, onChange func(), logger *slog.Logger) (*TokenWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &TokenWatcher{
		watcher:   w,
		path:      filepath.Clean(path),
		onChange:  onChange,
		debouncer: &debouncer{duration: DefaultDebounceWindow},
		logger:    logging.WithOperation(logger, "token_watch"),
	}, nil
}

// Run processes events until ctx is done or the watcher is closed.
func (tw *TokenWatcher) Run(ctx context.Context) {
	defer tw.debouncer.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != tw.path {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				tw.logger.Debug("token file changed", slog.String("event", event.Op.String()))
				tw.debouncer.trigger(tw.onChange)
			}
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			tw.logger.Warn("token watcher error", logging.Err(err))
		}
	}
}

// Close stops the underlying watcher.
func (tw *TokenWatcher) Close() error {
	return tw.watcher.Close()
}
