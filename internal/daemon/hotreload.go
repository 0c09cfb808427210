package daemon

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/appmenu/internal/config"
)

// ConfigWatcher watches the daemon config file for changes and validates new configs.
type ConfigWatcher struct {
	mu     sync.RWMutex
	logger *slog.Logger

	configPath string
	watcher    *fsnotify.Watcher

	// Current valid config
	currentConfig *config.DaemonConfig

	onReloadCallback func(newConfig *config.DaemonConfig)
	onErrorCallback  func(err error)

	done    chan struct{}
	stopped chan struct{}
	running bool
}

// NewConfigWatcher creates a ConfigWatcher for configPath.
func NewConfigWatcher(configPath string, logger *slog.Logger) *ConfigWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{
		logger:     logger,
		configPath: configPath,
	}
}

// SetReloadCallback sets the callback to invoke when config is successfully reloaded.
func (w *ConfigWatcher) SetReloadCallback(callback func(newConfig *config.DaemonConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReloadCallback = callback
}

// SetErrorCallback sets the callback to invoke when config reload fails validation.
func (w *ConfigWatcher) SetErrorCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onErrorCallback = callback
}

// Start begins watching the config file. The containing directory is
// watched so the file may be created or atomically replaced later.
func (w *ConfigWatcher) Start(initialConfig *config.DaemonConfig) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.configPath)); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.currentConfig = initialConfig
	w.done = make(chan struct{})
	w.stopped = make(chan struct{})
	w.running = true

	go w.watch(watcher, w.done, w.stopped)

	w.logger.Debug("config watcher started", "path", w.configPath)
	return nil
}

// Stop stops watching the config file.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.done)
	watcher, stopped := w.watcher, w.stopped
	w.mu.Unlock()

	_ = watcher.Close()
	<-stopped
	w.logger.Debug("config watcher stopped")
}

// GetCurrentConfig returns the current valid configuration.
func (w *ConfigWatcher) GetCurrentConfig() *config.DaemonConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentConfig
}

func (w *ConfigWatcher) watch(watcher *fsnotify.Watcher, done, stopped chan struct{}) {
	defer close(stopped)

	filename := filepath.Base(w.configPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-done:
			return
		}
	}
}

// reload loads and validates the file, notifying the callbacks.
func (w *ConfigWatcher) reload() {
	w.mu.RLock()
	reloadCallback := w.onReloadCallback
	errorCallback := w.onErrorCallback
	current := w.currentConfig
	w.mu.RUnlock()

	newConfig, err := config.LoadDaemonConfig(w.configPath)
	if err != nil {
		w.logger.Warn("config file changed but validation failed", "path", w.configPath, "error", err)
		if errorCallback != nil {
			errorCallback(err)
		}
		return
	}

	// Editors often write a file more than once per save.
	if current != nil && *current == *newConfig {
		return
	}

	w.mu.Lock()
	w.currentConfig = newConfig
	w.mu.Unlock()

	w.logger.Info("config reloaded successfully", "path", w.configPath)
	if reloadCallback != nil {
		reloadCallback(newConfig)
	}
}
