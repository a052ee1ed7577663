package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SourceCache holds the parsed source configs. Configs are read from disk
// once at startup and on explicit reload; the hot path never touches the
// filesystem.
type SourceCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewSourceCache(sourcesDir string) *SourceCache {
	return &SourceCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

// Run loads every *.yml file in the sources directory. A missing
// directory is not an error; a broken config file is.
func (sc *SourceCache) Run() error {
	if _, err := os.Stat(sc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(sc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find source config files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := sc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source config loaded", "source", name, "enabled", config.Settings.Enabled,
			"category", config.Category, "refresh_interval", config.Settings.RefreshInterval)
	}

	return nil
}

func (sc *SourceCache) LoadConfig(name string) (*Config, error) {
	config, err := sc.parseConfig(filepath.Join(sc.sourcesDir, name+".yml"))
	if err != nil {
		return nil, err
	}

	config.Name = name

	if err := sc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config for source '%s': %w", name, err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cache[config.Name] = config

	return config, nil
}

func (sc *SourceCache) GetConfig(name string) (*Config, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	config, ok := sc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return config, nil
}

func (sc *SourceCache) GetEnabledConfigs() map[string]*Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	enabled := make(map[string]*Config)
	for name, config := range sc.cache {
		if config.Settings.Enabled {
			enabled[name] = config
		}
	}
	return enabled
}

func (sc *SourceCache) GetConfigCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cache)
}

func (sc *SourceCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Settings.RefreshInterval == 0 {
		config.Settings.RefreshInterval = 3600
	}
	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = 50
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30
	}

	return &config, nil
}

func (sc *SourceCache) validateConfig(config *Config) error {
	if config.URL == "" {
		return fmt.Errorf("url is required")
	}

	if config.Settings.RefreshInterval < 0 || config.Settings.MaxItems < 0 || config.Settings.Timeout < 0 {
		return fmt.Errorf("settings must be non-negative")
	}

	validFields := map[string]bool{
		"title":       true,
		"description": true,
		"content":     true,
		"authors":     true,
		"link":        true,
		"categories":  true,
	}

	for i, filter := range config.Filters {
		if !validFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}
