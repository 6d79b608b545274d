package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Watcher.Interval != time.Minute {
		t.Errorf("expected default interval 1m, got %v", cfg.Watcher.Interval)
	}
	if cfg.Watcher.PageSize != 20 {
		t.Errorf("expected default page size 20, got %d", cfg.Watcher.PageSize)
	}
	if cfg.Watcher.DedupTTL != 2*time.Hour {
		t.Errorf("expected default dedup TTL 2h, got %v", cfg.Watcher.DedupTTL)
	}
	if cfg.Watcher.DefaultRule.Property != "Caption Status" {
		t.Errorf("expected default rule property Caption Status, got %s", cfg.Watcher.DefaultRule.Property)
	}
	if cfg.Board.KeyProperty != "Code" {
		t.Errorf("expected default key property Code, got %s", cfg.Board.KeyProperty)
	}
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL nats://localhost:4222, got %s", cfg.NATS.URL)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero interval",
			modify:  func(c *Config) { c.Watcher.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "negative page size",
			modify:  func(c *Config) { c.Watcher.PageSize = -1 },
			wantErr: true,
		},
		{
			name:    "dedup TTL below an hour",
			modify:  func(c *Config) { c.Watcher.DedupTTL = 30 * time.Minute },
			wantErr: true,
		},
		{
			name:    "missing rules path",
			modify:  func(c *Config) { c.Watcher.RulesPath = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
board:
  base_url: "https://board.test/v1"
  collection_id: "col-42"
  key_property: "Project Code"
nats:
  url: "nats://test:4222"
watcher:
  interval: 30s
  page_size: 50
extraction:
  endpoint: "http://test:1234/v1"
  model: "test-model"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Board.BaseURL != "https://board.test/v1" {
		t.Errorf("expected base URL https://board.test/v1, got %s", cfg.Board.BaseURL)
	}
	if cfg.Board.CollectionID != "col-42" {
		t.Errorf("expected collection col-42, got %s", cfg.Board.CollectionID)
	}
	if cfg.Board.KeyProperty != "Project Code" {
		t.Errorf("expected key property Project Code, got %s", cfg.Board.KeyProperty)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Watcher.Interval != 30*time.Second {
		t.Errorf("expected interval 30s, got %v", cfg.Watcher.Interval)
	}
	if cfg.Watcher.PageSize != 50 {
		t.Errorf("expected page size 50, got %d", cfg.Watcher.PageSize)
	}
	// Untouched sections keep their defaults.
	if cfg.Watcher.DedupTTL != 2*time.Hour {
		t.Errorf("expected dedup TTL to remain default, got %v", cfg.Watcher.DedupTTL)
	}
	if cfg.Extraction.Model != "test-model" {
		t.Errorf("expected extraction model test-model, got %s", cfg.Extraction.Model)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Board: BoardConfig{
			CollectionID: "col-override",
		},
		Watcher: WatcherConfig{
			Interval: 5 * time.Minute,
		},
	}

	base.Merge(override)

	if base.Board.CollectionID != "col-override" {
		t.Errorf("expected collection col-override, got %s", base.Board.CollectionID)
	}
	if base.Watcher.Interval != 5*time.Minute {
		t.Errorf("expected interval 5m, got %v", base.Watcher.Interval)
	}
	// NATS URL should remain from base since override didn't set it
	if base.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected NATS URL to remain default, got %s", base.NATS.URL)
	}
	// Default rule should survive an override that never mentions it
	if base.Watcher.DefaultRule.Property != "Caption Status" {
		t.Errorf("expected default rule to remain, got %s", base.Watcher.DefaultRule.Property)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Board.CollectionID = "col-saved"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Board.CollectionID != "col-saved" {
		t.Errorf("expected collection col-saved, got %s", loaded.Board.CollectionID)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PRODSYNC_BOARD_TOKEN", "secret-token")
	t.Setenv("PRODSYNC_COLLECTION_ID", "col-env")

	cfg := DefaultConfig()
	applyEnv(cfg)

	if cfg.Board.Token != "secret-token" {
		t.Errorf("expected token from environment, got %s", cfg.Board.Token)
	}
	if cfg.Board.CollectionID != "col-env" {
		t.Errorf("expected collection col-env, got %s", cfg.Board.CollectionID)
	}
}
