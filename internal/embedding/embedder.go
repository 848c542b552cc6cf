// Package embedding turns text into fixed-dimension vectors. Providers: a local
// ONNX model, OpenAI-compatible and Ollama HTTP APIs, and a deterministic hash
// embedder; plus caching and retry wrappers.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// DefaultDimensions is the output size of all-MiniLM-L6-v2 and of the hash embedder.
const DefaultDimensions = 384

// ErrCountMismatch is returned when a provider answers a batch with the wrong number of vectors.
var ErrCountMismatch = errors.New("embedding count mismatch")

// APIError is a failed call to a remote embedding provider. StatusCode is 0
// when the request never got a response.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether the call may succeed if repeated: rate limits,
// server errors and transport failures.
func (e *APIError) Retryable() bool {
	if e.StatusCode == 0 {
		return !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, context.DeadlineExceeded)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// LocalOption configures the in-process providers (ONNX and hash).
type LocalOption func(*localOptions)

type localOptions struct {
	normalize bool
}

func newLocalOptions(opts []LocalOption) localOptions {
	o := localOptions{normalize: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithNormalize sets whether outputs are L2-normalised. Default true.
func WithNormalize(normalize bool) LocalOption {
	return func(o *localOptions) {
		o.normalize = normalize
	}
}

// embedEach calls embed for each text.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

func checkBatch(vectors [][]float32, want, dims int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d vectors for %d inputs", ErrCountMismatch, len(vectors), want)
	}
	if dims <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dims)
		}
	}
	return nil
}
