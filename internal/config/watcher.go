package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gatewaylab/routemap/internal/observability"
)

// ReloadFunc is called with each successfully reloaded route table.
type ReloadFunc func(*RouteTable)

// ErrorCallback is called when a reload fails.
type ErrorCallback func(error)

// Watcher watches a route table file and triggers reloads on change.
type Watcher struct {
	path          string
	watcher       *fsnotify.Watcher
	callback      ReloadFunc
	errorCallback ErrorCallback
	logger        observability.Logger
	debounceDelay time.Duration
	lastConfig    *RouteTable
	mu            sync.RWMutex
	stopCh        chan struct{}
	stoppedCh     chan struct{}
	running       bool
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay for file changes.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithErrorCallback sets the error callback for the watcher.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.errorCallback = callback
	}
}

// NewWatcher creates a new route table watcher.
func NewWatcher(path string, callback ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:          absPath,
		watcher:       fsWatcher,
		callback:      callback,
		debounceDelay: 100 * time.Millisecond,
		logger:        observability.NopLogger(),
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start loads the initial route table and begins watching the file.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	config, err := w.loadAndValidate()
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.lastConfig = config
	w.mu.Unlock()

	// Watch the directory so editor rename-and-replace saves are seen
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.logger.Info("started watching route table",
		observability.String("path", w.path),
	)

	go w.watch(ctx)

	return nil
}

// Stop stops watching the route table file.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh

	return w.watcher.Close()
}

// LastConfig returns the last successfully loaded route table.
func (w *Watcher) LastConfig() *RouteTable {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastConfig
}

// watch is the main watch loop.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("route table watcher stopped due to context cancellation")
			return

		case <-w.stopCh:
			w.logger.Info("route table watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			debounceTimer, debounceCh = w.handleFileEvent(event, debounceTimer, debounceCh)

		case <-debounceCh:
			debounceCh = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.handleWatchError(err)
		}
	}
}

// handleFileEvent processes a file system event and returns the updated debounce timer.
func (w *Watcher) handleFileEvent(
	event fsnotify.Event,
	debounceTimer *time.Timer,
	debounceCh <-chan time.Time,
) (timer *time.Timer, ch <-chan time.Time) {
	// Only process events for our file
	if filepath.Clean(event.Name) != w.path {
		return debounceTimer, debounceCh
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return debounceTimer, debounceCh
	}

	w.logger.Debug("route table file changed",
		observability.String("path", event.Name),
		observability.String("op", event.Op.String()),
	)

	// Reset debounce timer
	if debounceTimer != nil {
		debounceTimer.Stop()
	}
	debounceTimer = time.NewTimer(w.debounceDelay)
	return debounceTimer, debounceTimer.C
}

// handleWatchError handles watcher errors.
func (w *Watcher) handleWatchError(err error) {
	w.logger.Error("route table watcher error",
		observability.Error(err),
	)
	if w.errorCallback != nil {
		w.errorCallback(err)
	}
}

// reload attempts to reload the route table.
func (w *Watcher) reload() {
	w.logger.Info("reloading route table",
		observability.String("path", w.path),
	)

	config, err := w.loadAndValidate()
	if err != nil {
		w.logger.Error("route table reload failed",
			observability.Error(err),
		)
		if w.errorCallback != nil {
			w.errorCallback(err)
		}
		return
	}

	w.mu.Lock()
	w.lastConfig = config
	w.mu.Unlock()

	w.logger.Info("route table reloaded")

	if w.callback != nil {
		w.callback(config)
	}
}

// ForceReload forces an immediate reload.
func (w *Watcher) ForceReload() error {
	config, err := w.loadAndValidate()
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.lastConfig = config
	w.mu.Unlock()

	if w.callback != nil {
		w.callback(config)
	}

	return nil
}

func (w *Watcher) loadAndValidate() (*RouteTable, error) {
	config, err := LoadConfig(w.path)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}
