// Package config provides configuration loading and management for prodsync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete prodsync configuration.
type Config struct {
	Board      BoardConfig      `yaml:"board"`
	NATS       NATSConfig       `yaml:"nats"`
	Watcher    WatcherConfig    `yaml:"watcher"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

// BoardConfig configures the external project-board store.
type BoardConfig struct {
	// BaseURL is the board API base URL.
	BaseURL string `yaml:"base_url"`
	// Token is the API bearer token (usually set via PRODSYNC_BOARD_TOKEN).
	Token string `yaml:"token"`
	// CollectionID is the project collection the engine reconciles against.
	CollectionID string `yaml:"collection_id"`
	// KeyProperty is the board property holding the project business key.
	KeyProperty string `yaml:"key_property"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// URL is the NATS server URL.
	URL string `yaml:"url"`
	// NotifySubjectPrefix is where notifications are published for the
	// chat relay (default: notify.channel).
	NotifySubjectPrefix string `yaml:"notify_subject_prefix"`
}

// DefaultRuleConfig describes the implicit always-on watch rule.
type DefaultRuleConfig struct {
	Name     string `yaml:"name"`
	Property string `yaml:"property"`
	Value    string `yaml:"value"`
	Target   string `yaml:"target"`
}

// WatcherConfig configures the change-watcher poller.
type WatcherConfig struct {
	// Interval is the poll cadence.
	Interval time.Duration `yaml:"interval"`
	// PageSize bounds entities fetched per rule per cycle.
	PageSize int `yaml:"page_size"`
	// DedupTTL is how long notified (rule, entity) pairs are remembered.
	DedupTTL time.Duration `yaml:"dedup_ttl"`
	// RulesPath is the JSON file holding user-defined watch rules.
	RulesPath string `yaml:"rules_path"`
	// DefaultRule is the implicit rule evaluated before user rules.
	DefaultRule DefaultRuleConfig `yaml:"default_rule"`
}

// ExtractionConfig configures the NL extraction endpoint.
type ExtractionConfig struct {
	// Endpoint is an OpenAI-compatible API base URL.
	Endpoint string `yaml:"endpoint"`
	// Model is the model name sent with extraction requests.
	Model string `yaml:"model"`
	// APIKey is the endpoint bearer token (usually set via PRODSYNC_EXTRACTION_KEY).
	APIKey string `yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Board: BoardConfig{
			KeyProperty: "Code",
		},
		NATS: NATSConfig{
			URL:                 "nats://localhost:4222",
			NotifySubjectPrefix: "notify.channel",
		},
		Watcher: WatcherConfig{
			Interval:  time.Minute,
			PageSize:  20,
			DedupTTL:  2 * time.Hour,
			RulesPath: defaultRulesPath(),
			DefaultRule: DefaultRuleConfig{
				Name:     "caption-ready",
				Property: "Caption Status",
				Value:    "Ready For Captions",
				Target:   "captions-team",
			},
		},
		Extraction: ExtractionConfig{
			Endpoint: "http://localhost:11434/v1",
			Model:    "qwen2.5-coder:32b",
		},
	}
}

func defaultRulesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "watch-rules.json"
	}
	return filepath.Join(home, ".local", "share", "prodsync", "watch-rules.json")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Watcher.Interval <= 0 {
		return fmt.Errorf("watcher.interval must be positive")
	}
	if c.Watcher.PageSize <= 0 {
		return fmt.Errorf("watcher.page_size must be positive")
	}
	if c.Watcher.DedupTTL < time.Hour {
		return fmt.Errorf("watcher.dedup_ttl must be at least one hour")
	}
	if c.Watcher.RulesPath == "" {
		return fmt.Errorf("watcher.rules_path is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, layered over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one; other takes precedence
// for non-zero values.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Board.BaseURL != "" {
		c.Board.BaseURL = other.Board.BaseURL
	}
	if other.Board.Token != "" {
		c.Board.Token = other.Board.Token
	}
	if other.Board.CollectionID != "" {
		c.Board.CollectionID = other.Board.CollectionID
	}
	if other.Board.KeyProperty != "" {
		c.Board.KeyProperty = other.Board.KeyProperty
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.NotifySubjectPrefix != "" {
		c.NATS.NotifySubjectPrefix = other.NATS.NotifySubjectPrefix
	}

	if other.Watcher.Interval != 0 {
		c.Watcher.Interval = other.Watcher.Interval
	}
	if other.Watcher.PageSize != 0 {
		c.Watcher.PageSize = other.Watcher.PageSize
	}
	if other.Watcher.DedupTTL != 0 {
		c.Watcher.DedupTTL = other.Watcher.DedupTTL
	}
	if other.Watcher.RulesPath != "" {
		c.Watcher.RulesPath = other.Watcher.RulesPath
	}
	if other.Watcher.DefaultRule.Property != "" {
		c.Watcher.DefaultRule = other.Watcher.DefaultRule
	}

	if other.Extraction.Endpoint != "" {
		c.Extraction.Endpoint = other.Extraction.Endpoint
	}
	if other.Extraction.Model != "" {
		c.Extraction.Model = other.Extraction.Model
	}
	if other.Extraction.APIKey != "" {
		c.Extraction.APIKey = other.Extraction.APIKey
	}
}
