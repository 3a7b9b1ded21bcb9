package config

import (
	"os"
	"sync"
	"time"
)

// ConfigWatcher polls a config file for changes, debounces bursts of
// writes, and hands each validated new config to an onChange callback.
// It is the mechanism behind ConfigManager.StartWatching; most callers
// go through the manager rather than constructing one directly.
type ConfigWatcher struct {
	filePath     string
	pollInterval time.Duration
	debounce     time.Duration
	onChange     func(oldCfg, newCfg *Config)

	lastModTime time.Time
	lastSize    int64
	lastConfig  *Config

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// WatcherConfig holds config watcher configuration.
type WatcherConfig struct {
	FilePath     string
	PollInterval time.Duration // Default: 100ms
	Debounce     time.Duration // Default: 200ms
	OnChange     func(oldCfg, newCfg *Config)
}

// NewConfigWatcher creates a watcher over cfg.FilePath. The file must
// exist and load as a config; the loaded value becomes the "old" side of
// the first OnChange call.
func NewConfigWatcher(cfg *WatcherConfig) (*ConfigWatcher, error) {
	if cfg.FilePath == "" {
		return nil, ErrMissingConfigFile
	}
	if cfg.OnChange == nil {
		return nil, ErrMissingOnChange
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	info, err := os.Stat(cfg.FilePath)
	if err != nil {
		return nil, err
	}
	initial, err := LoadConfig(cfg.FilePath)
	if err != nil {
		return nil, err
	}

	return &ConfigWatcher{
		filePath:     cfg.FilePath,
		pollInterval: pollInterval,
		debounce:     debounce,
		onChange:     cfg.OnChange,
		lastModTime:  info.ModTime(),
		lastSize:     info.Size(),
		lastConfig:   initial,
		stopCh:       make(chan struct{}),
		stoppedCh:    make(chan struct{}),
	}, nil
}

// Start begins polling. A second Start on a running watcher is a no-op.
func (w *ConfigWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	go w.watchLoop()
}

// Stop halts polling and waits for the poll goroutine to exit.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh
}

// watchLoop polls on a ticker. A detected change arms (or re-arms) a
// debounce deadline; the reload fires once the file has been quiet for
// the full debounce window, so an editor writing in several syscalls
// triggers one reload, not one per write.
func (w *ConfigWatcher) watchLoop() {
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var quietSince time.Time
	for {
		select {
		case <-w.stopCh:
			return
		case now := <-ticker.C:
			if w.fileChanged() {
				quietSince = now
				continue
			}
			if !quietSince.IsZero() && now.Sub(quietSince) >= w.debounce {
				w.reload()
				quietSince = time.Time{}
			}
		}
	}
}

// fileChanged stats the file and reports whether its modification time
// or size moved since the last observation. Stat failures (the file is
// mid-rename, or briefly absent) count as unchanged; the next poll sees
// the settled state.
func (w *ConfigWatcher) fileChanged() bool {
	info, err := os.Stat(w.filePath)
	if err != nil {
		return false
	}
	if info.ModTime() == w.lastModTime && info.Size() == w.lastSize {
		return false
	}
	w.lastModTime = info.ModTime()
	w.lastSize = info.Size()
	return true
}

// reload loads and validates the new file contents, then hands old and
// new to onChange. A file that fails to load or validate is skipped; the
// previous config stays current.
func (w *ConfigWatcher) reload() {
	newConfig, err := LoadConfig(w.filePath)
	if err != nil {
		return
	}
	if errs := ValidateConfig(newConfig); len(errs) > 0 {
		return
	}

	oldConfig := w.lastConfig
	w.lastConfig = newConfig
	w.onChange(oldConfig, newConfig)
}
