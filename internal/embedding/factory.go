package embedding

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/ragapi/internal/config"
)

// Provider names accepted by New.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

// New builds the configured provider. Remote providers are wrapped in a
// RetryEmbedder; every provider gets a CachedEmbedder when CacheSize > 0.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		e   Embedder
		err error
	)
	httpCfg := HTTPConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.ModelName,
		Dimensions: cfg.Dimensions,
		Normalize:  cfg.NormalizeOrDefault(),
		Timeout:    cfg.Timeout,
	}
	normalize := WithNormalize(cfg.NormalizeOrDefault())
	switch strings.ToLower(cfg.Provider) {
	case ProviderONNX, "":
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, normalize)
	case ProviderHash:
		e = NewHashEmbedder(cfg.Dimensions, normalize)
	case ProviderOpenAI:
		var remote *OpenAIEmbedder
		remote, err = NewOpenAIEmbedder(ctx, httpCfg)
		if err == nil {
			e = NewRetryEmbedder(remote, cfg.MaxRetries, 0, logger)
		}
	case ProviderOllama:
		var remote *OllamaEmbedder
		remote, err = NewOllamaEmbedder(ctx, httpCfg)
		if err == nil {
			e = NewRetryEmbedder(remote, cfg.MaxRetries, 0, logger)
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, openai, ollama, hash)", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", cfg.Provider, err)
	}

	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.ModelName),
		zap.Int("dimensions", e.Dimensions()))

	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}
