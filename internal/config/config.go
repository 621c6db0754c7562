// Package config provides configuration loading and structs for the notecanvas server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// APIKeyEnv is the environment variable consulted when embedding.api_key is empty.
const APIKeyEnv = "OPENAI_API_KEY"

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retry     RetryConfig     `yaml:"retry"`
	Cache     CacheConfig     `yaml:"cache"`
	Related   RelatedConfig   `yaml:"related"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// StorageConfig holds paths for the note database and keyword index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "openai", "onnx" or "mock".
	Provider          string        `yaml:"provider"`
	Endpoint          string        `yaml:"endpoint"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	Dimensions        int           `yaml:"dimensions"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	// ModelPath and MaxTokens are used by the onnx provider only.
	ModelPath string `yaml:"model_path"`
	MaxTokens int    `yaml:"max_tokens"`
}

// RetryConfig controls retries of transient embedding failures.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	// Delay is the wait between attempts; an explicit 0s retries immediately.
	Delay *time.Duration `yaml:"delay"`
	// Strategy is "constant" (flat delay) or "exponential".
	Strategy string        `yaml:"strategy"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

// CacheConfig controls the id-keyed embedding cache.
type CacheConfig struct {
	Enabled *bool `yaml:"enabled"`
	// Capacity bounds the cache with LRU eviction. Zero means unbounded.
	Capacity int `yaml:"capacity"`
}

// EnabledOrDefault returns whether the cache is used; defaults to true when unset.
func (c *CacheConfig) EnabledOrDefault() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return true
}

// DefaultRetryDelay is used when retry.delay is unset.
const DefaultRetryDelay = time.Second

// DelayOrDefault returns the configured delay, DefaultRetryDelay when unset.
func (r *RetryConfig) DelayOrDefault() time.Duration {
	if r.Delay != nil {
		return *r.Delay
	}
	return DefaultRetryDelay
}

// RelatedConfig holds related-note search knobs.
type RelatedConfig struct {
	DefaultK            int           `yaml:"default_k"`
	MaxK                int           `yaml:"max_k"`
	MaxSimilarity       float64       `yaml:"max_similarity"`
	NearDuplicateFilter *bool         `yaml:"near_duplicate_filter"`
	ExcludeExactText    *bool         `yaml:"exclude_exact_text"`
	PreviewLength       int           `yaml:"preview_length"`
	AlwaysEllipsis      *bool         `yaml:"always_ellipsis"`
	Concurrency         int           `yaml:"concurrency"`
	Timeout             time.Duration `yaml:"timeout"`
	DedupeInflight      *bool         `yaml:"dedupe_inflight"`
}

// NearDuplicateFilterOrDefault defaults to true when unset.
func (r *RelatedConfig) NearDuplicateFilterOrDefault() bool {
	return boolOrDefault(r.NearDuplicateFilter, true)
}

// ExcludeExactTextOrDefault defaults to true when unset.
func (r *RelatedConfig) ExcludeExactTextOrDefault() bool {
	return boolOrDefault(r.ExcludeExactText, true)
}

// AlwaysEllipsisOrDefault defaults to true when unset.
func (r *RelatedConfig) AlwaysEllipsisOrDefault() bool {
	return boolOrDefault(r.AlwaysEllipsis, true)
}

// DedupeInflightOrDefault defaults to true when unset.
func (r *RelatedConfig) DedupeInflightOrDefault() bool {
	return boolOrDefault(r.DedupeInflight, true)
}

func boolOrDefault(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ResolveAPIKey fills Embedding.APIKey from the environment when the file leaves it empty.
func (c *Config) ResolveAPIKey() {
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv(APIKeyEnv)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
