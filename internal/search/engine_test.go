package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hyperjump/ragapi/internal/config"
	"github.com/hyperjump/ragapi/internal/embedding"
	"github.com/hyperjump/ragapi/internal/indexer"
	"github.com/hyperjump/ragapi/internal/models"
	"github.com/hyperjump/ragapi/internal/vector"
)

const dims = 64

func testEngine(t *testing.T) (*Engine, *indexer.Indexer) {
	t.Helper()
	store, err := vector.NewMemoryStore("documents", dims, vector.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	emb := embedding.NewHashEmbedder(dims)
	chunker, err := indexer.NewChunker(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := indexer.New(store, emb, nil, chunker)
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(store, emb, config.QueryConfig{DefaultTopK: 5, MaxTopK: 50}), idx
}

func TestEngine_Query(t *testing.T) {
	ctx := context.Background()
	engine, idx := testEngine(t)
	docs := map[string]string{
		"ml":      "machine learning algorithms",
		"cooking": "slow roasted tomato soup",
		"travel":  "cheap flights to lisbon",
	}
	for id, text := range docs {
		if _, err := idx.Ingest(ctx, id, text); err != nil {
			t.Fatal(err)
		}
	}

	resp, err := engine.Query(ctx, &models.QueryRequest{Query: "machine learning algorithms", TopK: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(resp.Matches))
	}
	top := resp.Matches[0]
	if top.DocID != "ml" || top.ChunkIndex != 0 || top.Text != docs["ml"] {
		t.Errorf("top match = %+v", top)
	}
	if resp.Matches[1].Score > top.Score {
		t.Error("matches should be ordered by descending score")
	}
}

func TestEngine_QueryDefaultsAndBounds(t *testing.T) {
	ctx := context.Background()
	engine, idx := testEngine(t)
	for i := 0; i < 8; i++ {
		if _, err := idx.Ingest(ctx, fmt.Sprintf("doc%d", i), fmt.Sprintf("note number %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	resp, err := engine.Query(ctx, &models.QueryRequest{Query: "note"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Matches) != 5 {
		t.Errorf("default topK returned %d matches, want 5", len(resp.Matches))
	}

	for _, req := range []*models.QueryRequest{
		{Query: "   "},
		{Query: "note", TopK: 51},
		{Query: "note", TopK: -1},
	} {
		if _, err := engine.Query(ctx, req); !errors.Is(err, models.ErrInvalidQuery) {
			t.Errorf("Query(%+v) err=%v, want ErrInvalidQuery", req, err)
		}
	}
}

func TestEngine_QueryDocFilter(t *testing.T) {
	ctx := context.Background()
	engine, idx := testEngine(t)
	idx.Ingest(ctx, "a", "shared words here")
	idx.Ingest(ctx, "b", "shared words here")

	resp, err := engine.Query(ctx, &models.QueryRequest{Query: "shared words", TopK: 10, DocID: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].DocID != "b" {
		t.Errorf("matches=%+v, want only doc b", resp.Matches)
	}
}

func TestEngine_QueryEmptyCollection(t *testing.T) {
	engine, _ := testEngine(t)
	resp, err := engine.Query(context.Background(), &models.QueryRequest{Query: "anything"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Matches == nil || len(resp.Matches) != 0 {
		t.Errorf("Matches=%v, want empty non-nil slice", resp.Matches)
	}
}

type brokenEmbedder struct{ *embedding.HashEmbedder }

func (brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model unavailable")
}

func TestEngine_QueryEmbeddingFailure(t *testing.T) {
	store, _ := vector.NewMemoryStore("documents", dims, vector.MetricCosine)
	engine := NewEngine(store, brokenEmbedder{embedding.NewHashEmbedder(dims)}, config.QueryConfig{})
	_, err := engine.Query(context.Background(), &models.QueryRequest{Query: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, models.ErrInvalidQuery) {
		t.Error("embedding failure must not be reported as an invalid query")
	}
}

func TestEngine_Health(t *testing.T) {
	engine, _ := testEngine(t)
	h := engine.Health()
	if h.Status != "ok" || h.CollectionName != "documents" || h.Dimension != dims {
		t.Errorf("Health() = %+v", h)
	}
}
