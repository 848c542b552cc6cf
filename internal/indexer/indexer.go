// Package indexer chunks, embeds and stores documents in a vector store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hyperjump/ragapi/internal/embedding"
	"github.com/hyperjump/ragapi/internal/extract"
	"github.com/hyperjump/ragapi/internal/fileid"
	"github.com/hyperjump/ragapi/internal/models"
	"github.com/hyperjump/ragapi/internal/vector"
)

// ErrUnprocessable is returned when a document has no usable text.
var ErrUnprocessable = errors.New("unprocessable document")

// FileError names the file an ingest failed on.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	if errors.Is(e.Err, ErrUnprocessable) {
		return fmt.Sprintf("failed to extract text from %s", e.Name)
	}
	return fmt.Sprintf("failed to ingest %s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

var tracer = otel.Tracer("github.com/hyperjump/ragapi/internal/indexer")

// Indexer writes documents to one vector store collection.
type Indexer struct {
	store     vector.Store
	embedder  embedding.Embedder
	extractor extract.TextExtractor
	chunker   *Chunker
	logger    *zap.Logger // optional; when set, logs debug events
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets a logger for debug output (document ingested, deleted, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// New creates an indexer. The embedder must produce vectors of the store's dimension.
func New(store vector.Store, embedder embedding.Embedder, extractor extract.TextExtractor, chunker *Chunker, opts ...Option) (*Indexer, error) {
	if embedder.Dimensions() != store.Dimension() {
		return nil, fmt.Errorf("%w: embedder produces %d, collection %s expects %d",
			vector.ErrDimensionMismatch, embedder.Dimensions(), store.Collection(), store.Dimension())
	}
	if chunker == nil {
		return nil, fmt.Errorf("%w: chunker is required", ErrInvalidChunking)
	}
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		chunker:   chunker,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Collection returns the name of the collection documents are written to.
func (idx *Indexer) Collection() string {
	return idx.store.Collection()
}

// Ingest chunks text, embeds every chunk in one batch and upserts the rows under docID.
// Existing rows of docID are kept, so ingesting the same text twice stores it twice.
func (idx *Indexer) Ingest(ctx context.Context, docID, text string) (*models.IngestResult, error) {
	ctx, span := tracer.Start(ctx, "ingest", trace.WithAttributes(attribute.String("doc_id", docID)))
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, endSpan(span, ErrUnprocessable)
	}
	chunks := idx.chunker.Chunk(text)
	span.SetAttributes(attribute.Int("chunks", len(chunks)))

	embeddings, err := idx.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, endSpan(span, fmt.Errorf("failed to generate embeddings: %w", err))
	}
	if len(embeddings) != len(chunks) {
		return nil, endSpan(span, fmt.Errorf("%w: %d embeddings for %d chunks",
			embedding.ErrCountMismatch, len(embeddings), len(chunks)))
	}

	rows := make([]vector.Chunk, len(chunks))
	for i, text := range chunks {
		rows[i] = vector.Chunk{Index: i, Text: text, Embedding: embeddings[i]}
	}
	written, err := idx.store.Upsert(ctx, docID, rows)
	if err != nil {
		return nil, endSpan(span, fmt.Errorf("failed to store chunks: %w", err))
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer document ingested", zap.String("doc_id", docID), zap.Int("chunks", written))
	}
	return &models.IngestResult{
		DocID:      docID,
		NumChunks:  written,
		Collection: idx.store.Collection(),
	}, nil
}

// IngestFile extracts the text of path and ingests it under the file's stem.
// Every failure is a *FileError naming the file.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*models.IngestResult, error) {
	name := filepath.Base(path)
	text, err := idx.extractText(path)
	if err != nil {
		return nil, &FileError{Name: name, Err: err}
	}
	res, err := idx.Ingest(ctx, fileid.DocID(path), text)
	if err != nil {
		return nil, &FileError{Name: name, Err: err}
	}
	return res, nil
}

// IngestFiles ingests paths in order and stops at the first failure, returning
// the results so far. Files before the failing one stay written.
func (idx *Indexer) IngestFiles(ctx context.Context, paths []string) ([]*models.IngestResult, error) {
	results := make([]*models.IngestResult, 0, len(paths))
	for _, path := range paths {
		res, err := idx.IngestFile(ctx, path)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// IngestDirectory walks dir recursively and ingests each regular file whose extension
// is in allowedExts (if non-empty; otherwise all files). It stops at the first failure.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, allowedExts []string) ([]*models.IngestResult, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !ExtensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		// Resolve symlinks so we only ingest regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx.IngestFiles(ctx, paths)
}

// Reindex replaces the rows of the file's document with its current content.
// When extraction fails the existing rows are left in place.
func (idx *Indexer) Reindex(ctx context.Context, path string) (*models.IngestResult, error) {
	name := filepath.Base(path)
	docID := fileid.DocID(path)
	text, err := idx.extractText(path)
	if err != nil {
		return nil, &FileError{Name: name, Err: err}
	}
	if _, err := idx.DeleteDocument(ctx, docID); err != nil {
		return nil, &FileError{Name: name, Err: err}
	}
	res, err := idx.Ingest(ctx, docID, text)
	if err != nil {
		return nil, &FileError{Name: name, Err: err}
	}
	return res, nil
}

// RemoveFile deletes the document the file was ingested as.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (int64, error) {
	return idx.DeleteDocument(ctx, fileid.DocID(path))
}

// DeleteDocument removes every chunk of docID and returns how many were removed.
// Deleting an unknown document succeeds with 0.
func (idx *Indexer) DeleteDocument(ctx context.Context, docID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "delete", trace.WithAttributes(attribute.String("doc_id", docID)))
	defer span.End()

	n, err := idx.store.DeleteByDocID(ctx, docID)
	if err != nil {
		return 0, endSpan(span, fmt.Errorf("failed to delete document %s: %w", docID, err))
	}
	span.SetAttributes(attribute.Int64("deleted", n))
	if idx.logger != nil {
		idx.logger.Debug("indexer document deleted", zap.String("doc_id", docID), zap.Int64("chunks", n))
	}
	return n, nil
}

// extractText returns the file's text, or an error wrapping ErrUnprocessable when
// no extractor produced any.
func (idx *Indexer) extractText(path string) (string, error) {
	if idx.extractor == nil {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(content), nil
	}
	text, err := idx.extractor.Extract(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrUnprocessable, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrUnprocessable
	}
	return text, nil
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and the leading dot.
// An empty list allows everything.
func ExtensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
