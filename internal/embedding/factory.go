package embedding

import (
	"fmt"

	"github.com/hyperjump/notecanvas/internal/config"
)

// Provider names accepted in embedding.provider.
const (
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
	ProviderMock   = "mock"
)

// NewFromConfig builds the configured provider wrapped in a RetryEmbedder.
func NewFromConfig(cfg *config.Config, opts ...RetryOption) (Embedder, error) {
	base, err := newProvider(&cfg.Embedding)
	if err != nil {
		return nil, err
	}
	policy := RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       cfg.Retry.DelayOrDefault(),
		Strategy:    cfg.Retry.Strategy,
		MaxDelay:    cfg.Retry.MaxDelay,
	}
	return NewRetryEmbedder(base, policy, opts...), nil
}

func newProvider(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires embedding.api_key or %s", config.APIKeyEnv)
		}
		return NewOpenAIEmbedder(OpenAIConfig{
			Endpoint:          cfg.Endpoint,
			Model:             cfg.Model,
			APIKey:            cfg.APIKey,
			Dimensions:        cfg.Dimensions,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil
	case ProviderONNX:
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case ProviderMock:
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, onnx, mock)", cfg.Provider)
	}
}
