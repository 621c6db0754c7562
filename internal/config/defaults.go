package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.CORSAllowedOrigins == nil {
		cfg.Server.CORSAllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/notecanvas/data/db/notes.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/notecanvas/data/indices/bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Endpoint == "" {
		cfg.Embedding.Endpoint = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-ada-002"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.Delay == nil {
		d := DefaultRetryDelay
		cfg.Retry.Delay = &d
	}
	if cfg.Retry.Strategy == "" {
		cfg.Retry.Strategy = "constant"
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 10 * time.Second
	}
	if cfg.Related.DefaultK == 0 {
		cfg.Related.DefaultK = 3
	}
	if cfg.Related.MaxK == 0 {
		cfg.Related.MaxK = 50
	}
	if cfg.Related.MaxSimilarity == 0 {
		cfg.Related.MaxSimilarity = 0.9999
	}
	if cfg.Related.PreviewLength == 0 {
		cfg.Related.PreviewLength = 100
	}
	if cfg.Related.Concurrency == 0 {
		cfg.Related.Concurrency = 8
	}
	if cfg.Related.Timeout == 0 {
		cfg.Related.Timeout = 60 * time.Second
	}
}
