package embedding

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/ragapi/internal/config"
)

func TestNew_Hash(t *testing.T) {
	e, err := New(context.Background(), config.EmbeddingConfig{Provider: "hash", Dimensions: 16, CacheSize: 4}, nil)
	if err != nil {
		t.Fatalf("New(hash): %v", err)
	}
	defer e.Close()
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("got %T, want *CachedEmbedder", e)
	}
	if e.Dimensions() != 16 {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}
}

func TestNew_HashWithoutCache(t *testing.T) {
	e, err := New(context.Background(), config.EmbeddingConfig{Provider: "HASH"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*HashEmbedder); !ok {
		t.Errorf("got %T, want *HashEmbedder", e)
	}
	if e.Dimensions() != DefaultDimensions {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}
}

func TestNew_HashHonoursNormalize(t *testing.T) {
	ctx := context.Background()
	text := "alpha beta beta gamma"
	for _, normalize := range []bool{true, false} {
		e, err := New(ctx, config.EmbeddingConfig{Provider: "hash", Dimensions: 4096, Normalize: &normalize}, nil)
		if err != nil {
			t.Fatal(err)
		}
		v, err := e.Embed(ctx, text)
		if err != nil {
			t.Fatal(err)
		}
		norm := math.Sqrt(dot(v, v))
		if normalize && math.Abs(norm-1) > 1e-6 {
			t.Errorf("normalize=true: norm=%v, want 1", norm)
		}
		if !normalize && math.Abs(norm-1) < 1e-3 {
			t.Errorf("normalize=false: norm=%v, want raw counts", norm)
		}
	}
}

func TestNew_OpenAIIsRetried(t *testing.T) {
	srv, _ := newOpenAIServer(t, 8, 0)
	e, err := New(context.Background(), config.EmbeddingConfig{
		Provider: "openai", BaseURL: srv.URL + "/v1", APIKey: "sk-test", MaxRetries: 2,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*RetryEmbedder); !ok {
		t.Errorf("got %T, want *RetryEmbedder", e)
	}
	if e.Dimensions() != 8 {
		t.Errorf("Dimensions=%d, want 8", e.Dimensions())
	}
}

func TestNew_OllamaUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	if _, err := New(context.Background(), config.EmbeddingConfig{Provider: "ollama", BaseURL: url}, nil); err == nil {
		t.Error("expected error when the probe cannot reach the server")
	}
}

func TestNew_Unknown(t *testing.T) {
	if _, err := New(context.Background(), config.EmbeddingConfig{Provider: "word2vec"}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}
