package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"qwencli/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches .qwen/config.yaml for changes and reloads the config.
// It watches the containing directory so that editor save strategies
// (rename-over, truncate-write) are all caught.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	configPath  string
	current     *Config
	onReload    func(*Config)
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a watcher for the given workspace.
// onReload is invoked with the freshly loaded config after every change;
// it may be nil.
func NewWatcher(workspace string, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fw,
		configPath:  Path(workspace),
		onReload:    onReload,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watcher runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		// Directory may not exist yet; hot reload is best-effort.
		logging.Get(logging.CategoryBoot).Warn("config watcher: initial watch failed: %v", err)
	} else {
		logging.BootDebug("config watcher: watching %s", dir)
	}

	go w.run(ctx)

	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

// Current returns the most recently loaded config, or nil before the
// first reload.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if w.debounced(event.Name) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Warn("config watcher error: %v", err)
		}
	}
}

// debounced reports whether the event for path arrived within the
// debounce window of the previous one.
func (w *Watcher) debounced(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if last, ok := w.debounceMap[path]; ok && now.Sub(last) < w.debounceDur {
		return true
	}
	w.debounceMap[path] = now
	return false
}

func (w *Watcher) reload() {
	cfg, err := Load(w.configPath)
	if err != nil {
		logging.Get(logging.CategoryBoot).Warn("config reload failed: %v", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	cb := w.onReload
	w.mu.Unlock()

	_ = logging.ReloadConfig()
	logging.Boot("config reloaded from %s", w.configPath)

	if cb != nil {
		cb(cfg)
	}
}
