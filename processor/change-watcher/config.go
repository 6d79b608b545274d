package changewatcher

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
)

// watcherSchema defines the configuration schema.
var watcherSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// RuleConfig describes the implicit default watch rule.
type RuleConfig struct {
	Name     string `json:"name"`
	Property string `json:"property"`
	Value    string `json:"value"`
	Target   string `json:"target"`
}

// Config holds configuration for the change-watcher component.
type Config struct {
	// PollInterval is how often to evaluate watch rules against the board.
	PollInterval time.Duration `json:"poll_interval"`

	// PageSize bounds entities fetched per rule per cycle.
	PageSize int `json:"page_size"`

	// DedupTTL is how long notified (rule, entity) pairs are remembered.
	DedupTTL time.Duration `json:"dedup_ttl"`

	// BoardURL is the project board API base URL.
	BoardURL string `json:"board_url"`

	// BoardToken is the board API bearer token. Falls back to
	// PRODSYNC_BOARD_TOKEN when empty.
	BoardToken string `json:"board_token,omitempty"`

	// CollectionID is the project collection to watch.
	CollectionID string `json:"collection_id"`

	// RulesPath points at a JSON rules file. When empty, rules are
	// kept in a NATS KV bucket instead.
	RulesPath string `json:"rules_path,omitempty"`

	// DefaultRule is the always-on rule evaluated before user rules.
	DefaultRule RuleConfig `json:"default_rule"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: 1 * time.Minute,
		PageSize:     20,
		DedupTTL:     2 * time.Hour,
		DefaultRule: RuleConfig{
			Name:     "caption-ready",
			Property: "Caption Status",
			Value:    "Ready For Captions",
			Target:   "captions-team",
		},
		Ports: &component.PortConfig{
			Outputs: []component.PortDefinition{
				{
					Name:        "notifications",
					Type:        "jetstream",
					Subject:     "watch.notify.>",
					StreamName:  "WATCH",
					Description: "Publish one-time state-transition notifications",
					Required:    true,
				},
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.DedupTTL <= 0 {
		return fmt.Errorf("dedup_ttl must be positive")
	}
	if c.BoardURL == "" {
		return fmt.Errorf("board_url is required")
	}
	if c.DefaultRule.Property == "" || c.DefaultRule.Value == "" {
		return fmt.Errorf("default_rule requires property and value")
	}
	return nil
}
