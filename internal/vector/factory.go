package vector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backend selects the store implementation.
type Backend string

const (
	// BackendQdrant stores vectors in a Qdrant server. Default.
	BackendQdrant Backend = "qdrant"
	// BackendSQLite stores vectors in a local SQLite file with exact search.
	BackendSQLite Backend = "sqlite"
	// BackendMemory keeps vectors in process, optionally snapshotted to disk.
	BackendMemory Backend = "memory"
)

// Options configures Open.
type Options struct {
	Backend    Backend
	Collection string
	Dimension  int
	Metric     Metric
	Index      IndexParams
	SearchEf   int

	// Qdrant
	Host          string
	Port          int
	MaxRetries    int
	RetryInterval time.Duration

	// SQLite
	DatabasePath string

	// Memory
	SnapshotPath string

	Logger *zap.Logger
}

// Open provisions the configured collection and returns a handle to it.
// Supported backends: "qdrant" (default), "sqlite", "memory".
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if opts.Index.Type == "" {
		opts.Index = DefaultIndexParams()
	}
	if opts.Metric == "" {
		opts.Metric = MetricCosine
	}
	switch opts.Backend {
	case BackendQdrant, "":
		return NewQdrantStore(ctx, opts)
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts.DatabasePath, opts.Collection, opts.Dimension, opts.Metric, opts.Index, opts.Logger)
	case BackendMemory:
		s, err := NewMemoryStore(opts.Collection, opts.Dimension, opts.Metric)
		if err != nil {
			return nil, err
		}
		if err := s.Load(opts.SnapshotPath); err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: qdrant, sqlite, memory)", opts.Backend)
	}
}
