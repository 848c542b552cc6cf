package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore keeps a collection in a local SQLite database and scores every
// candidate row exactly at query time. Several collections can share one file.
type SQLiteStore struct {
	db         *sql.DB
	collection string
	dimension  int
	metric     Metric
	index      IndexParams
	logger     *zap.Logger
}

// NewSQLiteStore opens or creates the database at dbPath and provisions the collection.
// Provisioning is idempotent; an existing collection is reused as-is and must
// have the requested dimension.
func NewSQLiteStore(ctx context.Context, dbPath, collection string, dimension int, metric Metric, index IndexParams, logger *zap.Logger) (*SQLiteStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SQLiteStore{
		db:         db,
		collection: collection,
		dimension:  dimension,
		metric:     metric,
		index:      index,
		logger:     logger,
	}
	if err := s.provision(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		metric TEXT NOT NULL,
		index_params TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		pk INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_collection_doc ON chunks(collection, doc_id);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) provision(ctx context.Context) error {
	var dim int
	var metric, params string
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension, metric, index_params FROM collections WHERE name = ?`, s.collection,
	).Scan(&dim, &metric, &params)

	if errors.Is(err, sql.ErrNoRows) {
		paramsJSON, err := json.Marshal(s.index)
		if err != nil {
			return fmt.Errorf("failed to marshal index params: %w", err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO collections (name, dimension, metric, index_params) VALUES (?, ?, ?, ?)`,
			s.collection, s.dimension, string(s.metric), string(paramsJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
		}
		s.logger.Info("created collection",
			zap.String("collection", s.collection),
			zap.Int("dimension", s.dimension),
			zap.String("metric", string(s.metric)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read collection %s: %w", s.collection, err)
	}

	if dim != s.dimension {
		return fmt.Errorf("%w: collection %s has dimension %d, embedder produces %d",
			ErrDimensionMismatch, s.collection, dim, s.dimension)
	}
	if Metric(metric) != s.metric {
		s.logger.Warn("collection exists with a different metric, reusing it",
			zap.String("collection", s.collection),
			zap.String("existing", metric),
			zap.String("requested", string(s.metric)))
	}
	s.metric = Metric(metric)
	if err := json.Unmarshal([]byte(params), &s.index); err != nil {
		return fmt.Errorf("failed to unmarshal index params: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Collection() string { return s.collection }
func (s *SQLiteStore) Dimension() int     { return s.dimension }
func (s *SQLiteStore) Metric() Metric     { return s.metric }

// Upsert inserts all chunks in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, docID string, chunks []Chunk) (int, error) {
	if err := validateChunks(s.dimension, docID, chunks); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (collection, doc_id, chunk_index, text, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, s.collection, docID, ch.Index, ch.Text, float32SliceToBytes(ch.Embedding)); err != nil {
			return 0, fmt.Errorf("failed to insert chunk %d: %w", ch.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return len(chunks), nil
}

// DeleteByDocID removes every row of docID and reports the affected row count.
func (s *SQLiteStore) DeleteByDocID(ctx context.Context, docID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE collection = ? AND doc_id = ?`, s.collection, docID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	return res.RowsAffected()
}

// Search loads the candidate rows and ranks them in process.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, req SearchRequest) ([]Hit, error) {
	if err := validateSearch(s.dimension, query, req); err != nil {
		return nil, err
	}
	if req.TopK == 0 {
		return []Hit{}, nil
	}

	q := `SELECT pk, doc_id, chunk_index, text, embedding FROM chunks WHERE collection = ?`
	args := []any{s.collection}
	if req.DocID != "" {
		q += ` AND doc_id = ?`
		args = append(args, req.DocID)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var scored []scoredRow
	for rows.Next() {
		var r scoredRow
		var blob []byte
		if err := rows.Scan(&r.pk, &r.hit.DocID, &r.hit.ChunkIndex, &r.hit.Text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		r.hit.Score = Score(s.metric, query, bytesToFloat32Slice(blob))
		scored = append(scored, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topK(scored, req.TopK), nil
}

// Count returns the rows of docID, or of the whole collection when docID is empty.
func (s *SQLiteStore) Count(ctx context.Context, docID string) (int64, error) {
	q := `SELECT COUNT(*) FROM chunks WHERE collection = ?`
	args := []any{s.collection}
	if docID != "" {
		q += ` AND doc_id = ?`
		args = append(args, docID)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Describe(ctx context.Context) (*CollectionInfo, error) {
	rows, err := s.Count(ctx, "")
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{
		Name:      s.collection,
		Dimension: s.dimension,
		Metric:    s.metric,
		Index:     s.index,
		Rows:      rows,
	}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
