// Package config loads and validates the errwatch configuration from a YAML
// file with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that round-trips through YAML as a string
// like "45s" or "5m".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// APIConfig configures the summarization endpoint.
type APIConfig struct {
	// APIKey authenticates against the Anthropic API.
	// Overridable via ERRWATCH_API_KEY.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier used for summarization.
	Model string `yaml:"model"`

	// MaxTokens bounds the response length.
	// Default: 1000, Range: 1-8192
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response variability.
	// Default: 0.7, Range: 0-2
	Temperature float64 `yaml:"temperature"`

	// Timeout bounds each endpoint call.
	// Default: 30s
	Timeout Duration `yaml:"timeout"`

	// RequestsPerMinute caps summarization calls in a sliding 60s window.
	// Default: 15
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// CollectionConfig configures intake and auto-summarization.
type CollectionConfig struct {
	// EnabledSources lists the collectors to start ("browser", "terminal").
	EnabledSources []string `yaml:"enabled_sources"`

	// IgnoredPatterns are regexps over the message; matching errors are
	// dropped before storage.
	IgnoredPatterns []string `yaml:"ignored_patterns"`

	// IgnoredDomains drop browser errors whose URL contains one of these.
	IgnoredDomains []string `yaml:"ignored_domains"`

	// MaxErrorsPerMinute throttles intake.
	// Default: 100
	MaxErrorsPerMinute int `yaml:"max_errors_per_minute"`

	// AutoSummarize enables the grouping engine.
	// Default: true
	AutoSummarize bool `yaml:"auto_summarize"`

	// GroupThreshold triggers summarization immediately once a similarity
	// group reaches this size.
	// Default: 5
	GroupThreshold int `yaml:"group_threshold"`

	// GroupDebounce summarizes a smaller group after this much quiet time.
	// Default: 5m
	GroupDebounce Duration `yaml:"group_debounce"`
}

// StorageConfig configures the repositories.
type StorageConfig struct {
	// DataDirectory holds the durable JSON files.
	// Overridable via ERRWATCH_DATA_DIR. Default: ~/.errwatch
	DataDirectory string `yaml:"data_directory"`

	// MaxErrors caps the error repository; oldest evicted past the cap.
	// Default: 10000
	MaxErrors int `yaml:"max_errors"`

	// MaxSummaries caps the summary repository.
	// Default: 5000
	MaxSummaries int `yaml:"max_summaries"`

	// RetentionDays is the age past which cleanup deletes records.
	// Default: 30, Range: 1-365
	RetentionDays int `yaml:"retention_days"`

	// DedupUnknownSources extends deduplication to sources other than
	// browser and terminal.
	// Default: true
	DedupUnknownSources bool `yaml:"dedup_unknown_sources"`

	// FlushInterval is the dirty-state flush period.
	// Default: 60s
	FlushInterval Duration `yaml:"flush_interval"`
}

// Config is the complete errwatch configuration.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Collection CollectionConfig `yaml:"collection"`
	Storage    StorageConfig    `yaml:"storage"`

	// LogLevel is one of debug, info, warn, error.
	// Overridable via ERRWATCH_LOG_LEVEL. Default: info
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		API: APIConfig{
			Model:             "claude-sonnet-4-5",
			MaxTokens:         1000,
			Temperature:       0.7,
			Timeout:           Duration(30 * time.Second),
			RequestsPerMinute: 15,
		},
		Collection: CollectionConfig{
			EnabledSources:     []string{"browser", "terminal"},
			MaxErrorsPerMinute: 100,
			AutoSummarize:      true,
			GroupThreshold:     5,
			GroupDebounce:      Duration(5 * time.Minute),
		},
		Storage: StorageConfig{
			DataDirectory:       filepath.Join(home, ".errwatch"),
			MaxErrors:           10000,
			MaxSummaries:        5000,
			RetentionDays:       30,
			DedupUnknownSources: true,
			FlushInterval:       Duration(60 * time.Second),
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path (missing file falls back to defaults),
// applies environment overrides, and validates. An empty path skips the
// file step.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ERRWATCH_API_KEY"); v != "" {
		c.API.APIKey = v
	}
	if v := os.Getenv("ERRWATCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ERRWATCH_DATA_DIR"); v != "" {
		c.Storage.DataDirectory = v
	}
}

// Validate checks if the configuration has valid values.
func (c Config) Validate() error {
	if c.API.Model == "" {
		return fmt.Errorf("api.model cannot be empty")
	}
	if c.API.MaxTokens < 1 || c.API.MaxTokens > 8192 {
		return fmt.Errorf("api.max_tokens must be between 1 and 8192 (got %d)", c.API.MaxTokens)
	}
	if c.API.Temperature < 0 || c.API.Temperature > 2 {
		return fmt.Errorf("api.temperature must be between 0 and 2 (got %.2f)", c.API.Temperature)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive (got %s)", c.API.Timeout)
	}
	if c.API.RequestsPerMinute < 1 {
		return fmt.Errorf("api.requests_per_minute must be at least 1 (got %d)", c.API.RequestsPerMinute)
	}

	for _, source := range c.Collection.EnabledSources {
		if source != "browser" && source != "terminal" {
			return fmt.Errorf("collection.enabled_sources contains unknown source %q", source)
		}
	}
	if c.Collection.MaxErrorsPerMinute < 1 {
		return fmt.Errorf("collection.max_errors_per_minute must be at least 1 (got %d)", c.Collection.MaxErrorsPerMinute)
	}
	if c.Collection.GroupThreshold < 1 {
		return fmt.Errorf("collection.group_threshold must be at least 1 (got %d)", c.Collection.GroupThreshold)
	}
	if c.Collection.GroupDebounce <= 0 {
		return fmt.Errorf("collection.group_debounce must be positive (got %s)", c.Collection.GroupDebounce)
	}

	if c.Storage.DataDirectory == "" {
		return fmt.Errorf("storage.data_directory cannot be empty")
	}
	if c.Storage.MaxErrors < 1 {
		return fmt.Errorf("storage.max_errors must be at least 1 (got %d)", c.Storage.MaxErrors)
	}
	if c.Storage.MaxSummaries < 1 {
		return fmt.Errorf("storage.max_summaries must be at least 1 (got %d)", c.Storage.MaxSummaries)
	}
	if c.Storage.RetentionDays < 1 || c.Storage.RetentionDays > 365 {
		return fmt.Errorf("storage.retention_days must be between 1 and 365 (got %d)", c.Storage.RetentionDays)
	}
	if c.Storage.FlushInterval <= 0 {
		return fmt.Errorf("storage.flush_interval must be positive (got %s)", c.Storage.FlushInterval)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	return nil
}
