// Package search answers semantic queries against the vector store.
package search

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hyperjump/ragapi/internal/config"
	"github.com/hyperjump/ragapi/internal/embedding"
	"github.com/hyperjump/ragapi/internal/models"
	"github.com/hyperjump/ragapi/internal/vector"
)

var tracer = otel.Tracer("github.com/hyperjump/ragapi/internal/search")

// Engine embeds a query and ranks stored chunks against it.
type Engine struct {
	store    vector.Store
	embedder embedding.Embedder
	config   config.QueryConfig
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine. Zero topK bounds fall back to the service defaults.
func NewEngine(store vector.Store, embedder embedding.Embedder, cfg config.QueryConfig, opts ...Option) *Engine {
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = config.MaxTopK
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = config.DefaultTopK
	}
	e := &Engine{
		store:    store,
		embedder: embedder,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query validates req, embeds the query text once and returns the store's hits
// in the order the store ranked them. Invalid requests wrap models.ErrInvalidQuery.
func (e *Engine) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	startTime := time.Now()
	if err := req.Validate(e.config.DefaultTopK, e.config.MaxTopK); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "query", trace.WithAttributes(
		attribute.Int("top_k", req.TopK),
		attribute.String("doc_id", req.DocID),
	))
	defer span.End()

	queryEmbedding, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		err = fmt.Errorf("embedding failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	hits, err := e.store.Search(ctx, queryEmbedding, vector.SearchRequest{TopK: req.TopK, DocID: req.DocID})
	if err != nil {
		err = fmt.Errorf("vector search failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("matches", len(hits)))

	response := &models.QueryResponse{Matches: make([]models.Match, 0, len(hits))}
	for _, h := range hits {
		response.Matches = append(response.Matches, models.Match{
			Score:      h.Score,
			DocID:      h.DocID,
			ChunkIndex: h.ChunkIndex,
			Text:       h.Text,
		})
	}
	if e.logger != nil {
		e.logger.Debug("search query",
			zap.Int("top_k", req.TopK),
			zap.Int("matches", len(response.Matches)),
			zap.Duration("took", time.Since(startTime)))
	}
	return response, nil
}

// Health reports the collection queries run against.
func (e *Engine) Health() *models.HealthResponse {
	return &models.HealthResponse{
		Status:         "ok",
		CollectionName: e.store.Collection(),
		Dimension:      e.store.Dimension(),
	}
}

// Describe returns the collection's parameters and row count.
func (e *Engine) Describe(ctx context.Context) (*vector.CollectionInfo, error) {
	return e.store.Describe(ctx)
}
