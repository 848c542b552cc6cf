package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/ragapi/internal/config"
	"github.com/hyperjump/ragapi/internal/embedding"
	"github.com/hyperjump/ragapi/internal/extract"
	"github.com/hyperjump/ragapi/internal/indexer"
	"github.com/hyperjump/ragapi/internal/search"
	"github.com/hyperjump/ragapi/internal/storage"
	"github.com/hyperjump/ragapi/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Embedder embedding.Embedder
	Store    vector.Store
	Indexer  *indexer.Indexer
	Engine   *search.Engine
	Staging  *storage.Staging
	logger   *zap.Logger
}

// Close saves the in-memory snapshot, if any, and releases the store and embedder.
func (c *Components) Close() {
	if mem, ok := c.Store.(*vector.MemoryStore); ok && c.Config.Storage.SnapshotPath != "" {
		if err := mem.Save(c.Config.Storage.SnapshotPath); err != nil {
			c.logger.Warn("vector snapshot save failed", zap.String("path", c.Config.Storage.SnapshotPath), zap.Error(err))
		}
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// vectorOptions maps the config to store options. The dimension is the embedder's.
func vectorOptions(cfg *config.Config, dimension int, logger *zap.Logger) (vector.Options, error) {
	metric, err := vector.ParseMetric(cfg.Vector.Metric)
	if err != nil {
		return vector.Options{}, err
	}
	return vector.Options{
		Backend:    vector.Backend(cfg.Vector.Backend),
		Collection: cfg.Vector.Collection,
		Dimension:  dimension,
		Metric:     metric,
		Index: vector.IndexParams{
			Type:           "HNSW",
			M:              cfg.Vector.HNSWM,
			EfConstruction: cfg.Vector.EfConstruction,
		},
		SearchEf:     cfg.Vector.SearchEf,
		Host:         cfg.Vector.Host,
		Port:         cfg.Vector.Port,
		MaxRetries:   cfg.Vector.MaxRetries,
		DatabasePath: cfg.Storage.DatabasePath,
		SnapshotPath: cfg.Storage.SnapshotPath,
		Logger:       logger,
	}, nil
}

// initializeComponents wires embedder, store, indexer and engine from cfg.
// Provisioning failures are returned; nothing is retried at startup.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	embedder, err := embedding.New(ctx, cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	opts, err := vectorOptions(cfg, embedder.Dimensions(), logger)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	store, err := vector.Open(ctx, opts)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	logger.Info("vector store ready",
		zap.String("backend", cfg.Vector.Backend),
		zap.String("collection", store.Collection()),
		zap.Int("dimension", store.Dimension()),
		zap.String("metric", string(store.Metric())))

	c := &Components{Config: cfg, Embedder: embedder, Store: store, logger: logger}

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, err
	}
	var debugLogger *zap.Logger
	if cfg.Debug {
		debugLogger = logger
	}
	c.Indexer, err = indexer.New(store, embedder, extract.DefaultChain(debugLogger), chunker, indexer.WithLogger(debugLogger))
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Engine = search.NewEngine(store, embedder, cfg.Query, search.WithLogger(debugLogger))

	c.Staging, err = storage.NewStaging(cfg.Storage.UploadDir())
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
