package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// jsonStorage implements CombinedStorage using a JSON file
type jsonStorage struct {
	filePath string
	defaults Settings
	mu       sync.RWMutex
}

// NewJSONStorage creates a new JSON storage. defaults are returned until the
// first Save and fill keys missing from the file. A value stored empty stays empty.
func NewJSONStorage(dataDir string, defaults Settings) CombinedStorage {
	return &jsonStorage{
		filePath: filepath.Join(dataDir, "config.json"),
		defaults: defaults,
	}
}

// Load loads configuration from JSON file
func (s *jsonStorage) Load() (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

func (s *jsonStorage) load() (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		return s.defaultConfig(), nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// keys present in the file win, even when empty; absent keys keep the default
	config := *s.defaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.Settings = withFallbacks(config.Settings, s.defaults)

	return &config, nil
}

// Save saves configuration to JSON file
func (s *jsonStorage) Save(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(cfg)
}

func (s *jsonStorage) save(cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// write-then-rename so a crash never leaves a truncated file
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}

	return nil
}

// GetSettings returns the current remediation settings
func (s *jsonStorage) GetSettings() (Settings, error) {
	cfg, err := s.Load()
	if err != nil {
		return Settings{}, err
	}
	return cfg.Settings, nil
}

// UpdateSettings applies update to the stored settings and persists them
func (s *jsonStorage) UpdateSettings(update func(settings *Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return Settings{}, err
	}
	update(&cfg.Settings)
	if err := s.save(cfg); err != nil {
		return Settings{}, err
	}
	return cfg.Settings, nil
}

// defaultConfig returns default configuration
func (s *jsonStorage) defaultConfig() *Config {
	settings := s.defaults
	settings.DKIMSelectors = append([]string(nil), s.defaults.DKIMSelectors...)
	return &Config{Settings: withFallbacks(settings, s.defaults)}
}

// withFallbacks replaces values no record can be written with. Operator
// choices such as an empty MX target are kept.
func withFallbacks(settings, defaults Settings) Settings {
	if settings.MXPriority == 0 {
		settings.MXPriority = defaults.MXPriority
	}
	if settings.TTL <= 0 {
		settings.TTL = defaults.TTL
	}
	if len(settings.DKIMSelectors) == 0 {
		settings.DKIMSelectors = append([]string(nil), defaults.DKIMSelectors...)
	}
	return settings
}
