package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheConfig controls the filesystem read cache.
type CacheConfig struct {
	// MaxEntries is the number of file contents kept in memory
	MaxEntries int `yaml:"max_entries"`
}

// HistoryConfig controls the build history database.
type HistoryConfig struct {
	// Enabled records every build in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the database file. Relative paths are resolved against the
	// state directory (see StateDir).
	DBPath string `yaml:"db_path"`
}

// Config represents treesync configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// OutputFormat is the default build output format (json, yaml, outline)
	OutputFormat string `yaml:"output_format"`

	// ProjectFile is the project built when no argument is given
	ProjectFile string `yaml:"project_file"`

	// LockTimeout bounds the wait for another build writing the same output
	LockTimeout time.Duration `yaml:"lock_timeout"`

	Cache   CacheConfig   `yaml:"cache"`
	History HistoryConfig `yaml:"history"`
}

var validFormats = map[string]bool{
	"json":    true,
	"yaml":    true,
	"outline": true,
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		OutputFormat: "json",
		ProjectFile:  "default.project.json",
		LockTimeout:  30 * time.Second,
		Cache: CacheConfig{
			MaxEntries: 1024,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  "history.db",
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are strings in YAML
	type yamlConfig struct {
		LogLevel     string        `yaml:"log_level"`
		OutputFormat string        `yaml:"output_format"`
		ProjectFile  string        `yaml:"project_file"`
		LockTimeout  string        `yaml:"lock_timeout"`
		Cache        CacheConfig   `yaml:"cache"`
		History      HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.OutputFormat != "" {
		cfg.OutputFormat = yamlCfg.OutputFormat
	}
	if yamlCfg.ProjectFile != "" {
		cfg.ProjectFile = yamlCfg.ProjectFile
	}
	if yamlCfg.LockTimeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid lock_timeout format %q: %w", yamlCfg.LockTimeout, err)
		}
		cfg.LockTimeout = timeout
	}
	if yamlCfg.Cache.MaxEntries != 0 {
		cfg.Cache.MaxEntries = yamlCfg.Cache.MaxEntries
	}

	// history.enabled may be explicitly false, so look at which keys exist
	var rawMap map[string]any
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, ok := rawMap["history"].(map[string]any); ok {
			if _, exists := section["enabled"]; exists {
				cfg.History.Enabled = yamlCfg.History.Enabled
			}
			if _, exists := section["db_path"]; exists {
				cfg.History.DBPath = yamlCfg.History.DBPath
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .treesync/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, StateDirName, "config.yaml"))
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(logLevel *string, outputFormat *string, noHistory *bool) {
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if outputFormat != nil {
		c.OutputFormat = *outputFormat
	}
	if noHistory != nil && *noHistory {
		c.History.Enabled = false
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if !validFormats[c.OutputFormat] {
		return fmt.Errorf("invalid output_format %q, must be one of: json, yaml, outline", c.OutputFormat)
	}

	if c.ProjectFile == "" {
		return fmt.Errorf("project_file cannot be empty")
	}

	if c.LockTimeout < 0 {
		return fmt.Errorf("lock_timeout must be >= 0, got %v", c.LockTimeout)
	}

	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be > 0, got %d", c.Cache.MaxEntries)
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}
