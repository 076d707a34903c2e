// Package config loads and validates filetrack's configuration via viper:
// defaults, an optional YAML config file, and FILETRACK_* environment
// overrides.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete filetrack configuration
type Config struct {
	Registry RegistryConfig `mapstructure:"registry"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Report   ReportConfig   `mapstructure:"report"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// RegistryConfig controls the tracking registry's backing indices
type RegistryConfig struct {
	// StoreCapacity is the initial capacity of each index
	StoreCapacity int `mapstructure:"store_capacity"`
	// StoreTrials bounds the retry loop when creating the indices
	StoreTrials int `mapstructure:"store_trials"`
}

// TrackerConfig controls the wrapped-operation façade
type TrackerConfig struct {
	// NameLenMax bounds every stored copy of a filename
	NameLenMax int `mapstructure:"name_len_max"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the minimum level logged: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level"`
	// Dir is where filetrack.log is written; empty means stderr
	Dir string `mapstructure:"dir"`
}

// ReportConfig controls the diagnostic dump
type ReportConfig struct {
	// Color enables styled output
	Color bool `mapstructure:"color"`
	// Pattern restricts the dump to filenames matching this glob
	Pattern string `mapstructure:"pattern"`
}

// WatchConfig controls the external-modification detector
type WatchConfig struct {
	// IgnorePatterns are glob patterns for paths the detector skips
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
	// DebounceMs suppresses duplicate reports for the same path within
	// this window
	DebounceMs int `mapstructure:"debounce_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			StoreCapacity: 64,
			StoreTrials:   4,
		},
		Tracker: TrackerConfig{
			NameLenMax: 4096,
		},
		Logging: LoggingConfig{
			Level: "INFO",
			Dir:   "",
		},
		Report: ReportConfig{
			Color:   true,
			Pattern: "",
		},
		Watch: WatchConfig{
			IgnorePatterns: []string{".git/**", "**/.DS_Store", "**/*.swp"},
			DebounceMs:     250,
		},
	}
}

// SetDefaults registers the built-in defaults with viper so they apply
// even without a config file.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("registry.store_capacity", defaults.Registry.StoreCapacity)
	viper.SetDefault("registry.store_trials", defaults.Registry.StoreTrials)

	viper.SetDefault("tracker.name_len_max", defaults.Tracker.NameLenMax)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("report.color", defaults.Report.Color)
	viper.SetDefault("report.pattern", defaults.Report.Pattern)

	viper.SetDefault("watch.ignore_patterns", defaults.Watch.IgnorePatterns)
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
}

// Load reads the configuration from viper into a Config and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "filetrack")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".filetrack"
	}
	return filepath.Join(home, ".config", "filetrack")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
