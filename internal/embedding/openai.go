package embedding

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/ragapi/pkg/utils"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "text-embedding-3-small"
)

type openAIRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	cfg        HTTPConfig
	url        string
	dimensions int
}

// NewOpenAIEmbedder creates the client and learns the output dimension, probing
// the API when cfg.Dimensions is 0.
func NewOpenAIEmbedder(ctx context.Context, cfg HTTPConfig) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	cfg.HTTPClient = cfg.client()
	e := &OpenAIEmbedder{
		cfg:        cfg,
		url:        strings.TrimRight(cfg.BaseURL, "/") + "/embeddings",
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

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends all texts in one request and returns vectors in input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var resp openAIResponse
	req := openAIRequest{Model: e.cfg.Model, Input: texts, Dimensions: e.cfg.Dimensions}
	if err := postJSON(ctx, e.cfg.HTTPClient, "openai", e.url, e.cfg.APIKey, req, &resp); err != nil {
		return nil, err
	}
	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i := range resp.Data {
		out[i] = resp.Data[i].Embedding
		if e.cfg.Normalize {
			utils.NormalizeL2(out[i])
		}
	}
	if err := checkBatch(out, len(texts), e.dimensions); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
