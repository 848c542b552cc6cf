package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/ragapi/pkg/utils"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "all-minilm"
)

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error"`
}

// OllamaEmbedder calls the Ollama /api/embed endpoint.
type OllamaEmbedder struct {
	cfg        HTTPConfig
	url        string
	dimensions int
}

// NewOllamaEmbedder creates the client and learns the output dimension, probing
// the server when cfg.Dimensions is 0.
func NewOllamaEmbedder(ctx context.Context, cfg HTTPConfig) (*OllamaEmbedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	cfg.HTTPClient = cfg.client()
	e := &OllamaEmbedder{
		cfg:        cfg,
		url:        strings.TrimRight(cfg.BaseURL, "/") + "/api/embed",
		dimensions: cfg.Dimensions,
	}
	if e.dimensions == 0 {
		dims, err := probeDimensions(ctx, e)
		if err != nil {
			return nil, err
		}
		e.dimensions = dims
	}
	return e, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends all texts in one request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var resp ollamaResponse
	if err := postJSON(ctx, e.cfg.HTTPClient, "ollama", e.url, e.cfg.APIKey, ollamaRequest{Model: e.cfg.Model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ollama API error: %s", resp.Error)
	}
	if e.cfg.Normalize {
		for _, v := range resp.Embeddings {
			utils.NormalizeL2(v)
		}
	}
	if err := checkBatch(resp.Embeddings, len(texts), e.dimensions); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return resp.Embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *OllamaEmbedder) Close() error {
	return nil
}
