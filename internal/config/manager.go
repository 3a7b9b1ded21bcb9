package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigManager manages runtime configuration with hot reload support,
// either on demand via Reload or continuously via StartWatching.
type ConfigManager struct {
	config     *Config
	configFile string
	mu         sync.RWMutex
	onUpdate   func(old, new *Config)
	watcher    *ConfigWatcher
}

// NewConfigManager creates a new config manager.
func NewConfigManager(cfg *Config, configFile string) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configFile: configFile,
	}
}

// SetOnUpdate sets the callback for config updates.
func (m *ConfigManager) SetOnUpdate(fn func(old, new *Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// GetConfig returns the current config.
func (m *ConfigManager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetConfigFile returns the config file path.
func (m *ConfigManager) GetConfigFile() string {
	return m.configFile
}

// Redacted returns a copy of the current config with the bind
// password masked, suitable for logging at startup.
func (m *ConfigManager) Redacted() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	redacted := copyConfig(m.config)
	if redacted.Bind.Password != "" {
		redacted.Bind.Password = "********"
	}
	return redacted
}

// Reload reloads config from file, validates it, and swaps it in if
// valid. The onUpdate callback, if set, runs in its own goroutine.
func (m *ConfigManager) Reload() error {
	if m.configFile == "" {
		return fmt.Errorf("config: no config file configured")
	}

	newConfig, err := LoadConfig(m.configFile)
	if err != nil {
		return fmt.Errorf("config: reload: %w", err)
	}

	if errs := ValidateConfig(newConfig); len(errs) > 0 {
		return fmt.Errorf("config: reload validation failed: %v", errs[0])
	}

	m.mu.Lock()
	oldConfig := m.config
	m.config = newConfig
	onUpdate := m.onUpdate
	m.mu.Unlock()

	if onUpdate != nil {
		go onUpdate(oldConfig, newConfig)
	}

	return nil
}

// StartWatching begins polling the config file and swapping in each
// validated change, with the onUpdate callback (if set) invoked per
// swap. Zero intervals take the watcher's defaults.
func (m *ConfigManager) StartWatching(pollInterval, debounce time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.configFile == "" {
		return ErrMissingConfigFile
	}
	if m.watcher != nil {
		return fmt.Errorf("config: already watching %s", m.configFile)
	}

	w, err := NewConfigWatcher(&WatcherConfig{
		FilePath:     m.configFile,
		PollInterval: pollInterval,
		Debounce:     debounce,
		OnChange:     m.applyWatchedConfig,
	})
	if err != nil {
		return err
	}
	m.watcher = w
	w.Start()
	return nil
}

// StopWatching halts a watcher started by StartWatching. Safe to call
// when none is running.
func (m *ConfigManager) StopWatching() {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

// applyWatchedConfig is the watcher's OnChange hook: it swaps the new
// config in and notifies onUpdate, already on the watcher's goroutine.
func (m *ConfigManager) applyWatchedConfig(_, newConfig *Config) {
	m.mu.Lock()
	oldConfig := m.config
	m.config = newConfig
	onUpdate := m.onUpdate
	m.mu.Unlock()

	if onUpdate != nil {
		onUpdate(oldConfig, newConfig)
	}
}

// SaveToFile writes the current config to its configured file path.
func (m *ConfigManager) SaveToFile() error {
	if m.configFile == "" {
		return fmt.Errorf("config: no config file configured")
	}

	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(m.configFile, data, 0o644); err != nil {
		return fmt.Errorf("config: write config file: %w", err)
	}

	return nil
}

// copyConfig creates a copy of config, deep-copying the Servers slice
// so redacting or mutating the copy never touches the original.
func copyConfig(c *Config) *Config {
	newConfig := *c
	newConfig.Servers = make([]ServerEndpoint, len(c.Servers))
	copy(newConfig.Servers, c.Servers)
	return &newConfig
}
