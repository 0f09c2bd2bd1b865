// Package config loads and validates gitgraph configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"
)

// ConfigDir is the directory under the repository root holding gitgraph state.
const ConfigDir = ".gitgraph"

// Config represents the complete gitgraph configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	History   HistoryConfig   `json:"history" mapstructure:"history"`
	Featurize FeaturizeConfig `json:"featurize" mapstructure:"featurize"`
	Index     IndexConfig     `json:"index" mapstructure:"index"`
	Ignore    []string        `json:"ignore" mapstructure:"ignore"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// HistoryConfig controls the commit scan and co-change weighting
type HistoryConfig struct {
	// MaxCommits caps how many commits the scan folds (0 = unlimited)
	MaxCommits int `json:"maxCommits" mapstructure:"maxCommits"`
	// WindowDays limits history to commits younger than this (0 = unlimited)
	WindowDays int `json:"windowDays" mapstructure:"windowDays"`
	// HalfLifeDays is the co-change decay half-life
	HalfLifeDays float64 `json:"halfLifeDays" mapstructure:"halfLifeDays"`
	// MaxCommitFiles skips commits touching more files than this (bulk sweeps)
	MaxCommitFiles int `json:"maxCommitFiles" mapstructure:"maxCommitFiles"`
	// SkipCorrupt continues past unreadable commits instead of failing the scan
	SkipCorrupt bool `json:"skipCorrupt" mapstructure:"skipCorrupt"`
}

// FeaturizeConfig controls content sketching
type FeaturizeConfig struct {
	ShingleSize      int   `json:"shingleSize" mapstructure:"shingleSize"`
	NumHashes        int   `json:"numHashes" mapstructure:"numHashes"`
	MaxFileSizeBytes int64 `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
	Workers          int   `json:"workers" mapstructure:"workers"`
}

// IndexConfig controls similarity scoring and candidate pruning
type IndexConfig struct {
	// CoChangeWeight and ContentWeight combine the two normalized signals
	CoChangeWeight float64 `json:"coChangeWeight" mapstructure:"coChangeWeight"`
	ContentWeight  float64 `json:"contentWeight" mapstructure:"contentWeight"`
	// Bands partitions MinHash signatures for LSH candidate buckets
	Bands int `json:"bands" mapstructure:"bands"`
	// MaxCandidates bounds the scored candidate set per query
	MaxCandidates int `json:"maxCandidates" mapstructure:"maxCandidates"`
}

// CacheConfig controls the on-disk index cache
type CacheConfig struct {
	Persist bool `json:"persist" mapstructure:"persist"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		History: HistoryConfig{
			MaxCommits:     5000,
			WindowDays:     730,
			HalfLifeDays:   180,
			MaxCommitFiles: 100,
			SkipCorrupt:    true,
		},
		Featurize: FeaturizeConfig{
			ShingleSize:      4,
			NumHashes:        64,
			MaxFileSizeBytes: 1000000,
			Workers:          4,
		},
		Index: IndexConfig{
			CoChangeWeight: 0.6,
			ContentWeight:  0.4,
			Bands:          16,
			MaxCandidates:  200,
		},
		Ignore: []string{"node_modules/**", "vendor/**", "**/*.lock", "build/**"},
		Cache: CacheConfig{
			Persist: true,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .gitgraph/config.json under repoRoot.
// A missing config file yields the defaults with RepoRoot filled in.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ConfigDir))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := DefaultConfig()
			cfg.RepoRoot = repoRoot
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.RepoRoot == "" || cfg.RepoRoot == "." {
		cfg.RepoRoot = repoRoot
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to .gitgraph/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ConfigDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.History.HalfLifeDays <= 0 {
		return &ConfigError{Field: "history.halfLifeDays", Message: "must be positive"}
	}
	if c.Featurize.ShingleSize < 1 {
		return &ConfigError{Field: "featurize.shingleSize", Message: "must be at least 1"}
	}
	if c.Featurize.NumHashes < 1 {
		return &ConfigError{Field: "featurize.numHashes", Message: "must be at least 1"}
	}
	if c.Index.Bands < 1 || c.Index.Bands > c.Featurize.NumHashes {
		return &ConfigError{Field: "index.bands", Message: "must be between 1 and featurize.numHashes"}
	}
	if c.Index.CoChangeWeight < 0 || c.Index.ContentWeight < 0 {
		return &ConfigError{Field: "index", Message: "signal weights must be non-negative"}
	}
	if c.Index.CoChangeWeight+c.Index.ContentWeight == 0 {
		return &ConfigError{Field: "index", Message: "at least one signal weight must be positive"}
	}
	for _, pattern := range c.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return &ConfigError{Field: "ignore", Message: "invalid glob pattern: " + pattern}
		}
	}
	return nil
}

// Ignored reports whether a repository-relative path matches an ignore glob.
func (c *Config) Ignored(path string) bool {
	for _, pattern := range c.Ignore {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
