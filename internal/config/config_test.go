package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.History.HalfLifeDays <= 0 {
		t.Error("HalfLifeDays should be positive by default")
	}
	if cfg.Featurize.ShingleSize < 1 {
		t.Error("ShingleSize should be at least 1 by default")
	}
	if cfg.Index.Bands > cfg.Featurize.NumHashes {
		t.Error("Bands should not exceed NumHashes by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should validate, got: %v", err)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.RepoRoot != tmpDir {
		t.Errorf("RepoRoot = %q, want %q", cfg.RepoRoot, tmpDir)
	}
	if cfg.Version != 1 {
		t.Errorf("missing config should fall back to defaults, Version = %d", cfg.Version)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, ConfigDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	content := `{
  "version": 1,
  "history": {"halfLifeDays": 90, "maxCommits": 100},
  "index": {"coChangeWeight": 0.5, "contentWeight": 0.5, "bands": 8}
}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.History.HalfLifeDays != 90 {
		t.Errorf("HalfLifeDays = %v, want 90", cfg.History.HalfLifeDays)
	}
	if cfg.History.MaxCommits != 100 {
		t.Errorf("MaxCommits = %d, want 100", cfg.History.MaxCommits)
	}
	if cfg.Index.Bands != 8 {
		t.Errorf("Bands = %d, want 8", cfg.Index.Bands)
	}
	// Unset sections keep defaults
	if cfg.Featurize.ShingleSize != DefaultConfig().Featurize.ShingleSize {
		t.Errorf("ShingleSize = %d, want default", cfg.Featurize.ShingleSize)
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.RepoRoot = tmpDir
	cfg.History.MaxCommits = 42

	if err := cfg.Save(tmpDir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.History.MaxCommits != 42 {
		t.Errorf("MaxCommits = %d, want 42", loaded.History.MaxCommits)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad version", func(c *Config) { c.Version = 2 }, true},
		{"zero half-life", func(c *Config) { c.History.HalfLifeDays = 0 }, true},
		{"zero shingle size", func(c *Config) { c.Featurize.ShingleSize = 0 }, true},
		{"bands above hashes", func(c *Config) { c.Index.Bands = c.Featurize.NumHashes + 1 }, true},
		{"negative weight", func(c *Config) { c.Index.ContentWeight = -1 }, true},
		{"both weights zero", func(c *Config) {
			c.Index.CoChangeWeight = 0
			c.Index.ContentWeight = 0
		}, true},
		{"bad glob", func(c *Config) { c.Ignore = []string{"[unclosed"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIgnored(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		path string
		want bool
	}{
		{"node_modules/react/index.js", true},
		{"vendor/lib/lib.go", true},
		{"src/deep/go.lock", true},
		{"src/main.go", false},
		{"README.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := cfg.Ignored(tt.path); got != tt.want {
				t.Errorf("Ignored(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
