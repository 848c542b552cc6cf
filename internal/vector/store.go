// Package vector provides vector stores: a named collection of document chunks
// with their embeddings, supporting upsert, filtered similarity search and
// delete by document.
package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Metric is the similarity function a collection is built with.
type Metric string

const (
	// MetricCosine is cosine similarity.
	MetricCosine Metric = "COSINE"
	// MetricInnerProduct is the dot product.
	MetricInnerProduct Metric = "IP"
	// MetricL2 is euclidean distance, reported as 1/(1+d).
	MetricL2 Metric = "L2"
)

// ParseMetric returns the metric for a case-insensitive name. Empty means cosine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToUpper(strings.TrimSpace(s))) {
	case MetricCosine, "":
		return MetricCosine, nil
	case MetricInnerProduct, "DOT":
		return MetricInnerProduct, nil
	case MetricL2, "EUCLID":
		return MetricL2, nil
	default:
		return "", fmt.Errorf("unknown metric %q (supported: COSINE, IP, L2)", s)
	}
}

// Schema limits for the doc_id and text fields, in bytes.
const (
	MaxDocIDLength = 128
	MaxTextLength  = 65535
)

// DefaultSearchEf is the HNSW search breadth used when a request does not set one.
const DefaultSearchEf = 64

// IndexParams describes the ANN index built on the embedding field.
type IndexParams struct {
	Type           string `json:"type"`
	M              int    `json:"m"`
	EfConstruction int    `json:"efConstruction"`
}

// DefaultIndexParams returns an HNSW index with M=8 and efConstruction=64.
func DefaultIndexParams() IndexParams {
	return IndexParams{Type: "HNSW", M: 8, EfConstruction: 64}
}

var (
	// ErrDimensionMismatch is returned when a vector does not match the collection dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrFieldTooLong is returned when doc_id or text exceed the schema limits.
	ErrFieldTooLong = errors.New("field exceeds schema limit")
)

// Chunk is one window of a document to be written.
type Chunk struct {
	Index     int
	Text      string
	Embedding []float32
}

// Hit is a single search result. Higher scores are more similar for every metric.
type Hit struct {
	Score      float64 `json:"score"`
	DocID      string  `json:"docId"`
	ChunkIndex int     `json:"chunkIndex"`
	Text       string  `json:"text"`
}

// SearchRequest bounds and filters a search. DocID restricts hits to one document when set.
type SearchRequest struct {
	TopK  int
	DocID string
	Ef    int
}

// CollectionInfo describes a provisioned collection.
type CollectionInfo struct {
	Name      string      `json:"name"`
	Dimension int         `json:"dimension"`
	Metric    Metric      `json:"metric"`
	Index     IndexParams `json:"index"`
	Rows      int64       `json:"rows"`
}

// Store is a handle to one provisioned collection.
type Store interface {
	Collection() string
	Dimension() int
	Metric() Metric
	// Upsert writes one row per chunk tagged with docID and returns the number
	// written. Rows are visible to Search when it returns. Existing rows for
	// docID are kept.
	Upsert(ctx context.Context, docID string, chunks []Chunk) (int, error)
	// DeleteByDocID removes every row of docID and returns how many were removed.
	DeleteByDocID(ctx context.Context, docID string) (int64, error)
	// Search returns at most req.TopK hits by descending score.
	Search(ctx context.Context, query []float32, req SearchRequest) ([]Hit, error)
	// Count returns the rows of docID, or of the whole collection when docID is empty.
	Count(ctx context.Context, docID string) (int64, error)
	Describe(ctx context.Context) (*CollectionInfo, error)
	Close() error
}

func checkDimension(want int, vec []float32) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

// validateChunks runs the schema checks shared by every backend before any I/O.
func validateChunks(dim int, docID string, chunks []Chunk) error {
	if len(docID) > MaxDocIDLength {
		return fmt.Errorf("%w: doc_id is %d bytes, limit %d", ErrFieldTooLong, len(docID), MaxDocIDLength)
	}
	for _, ch := range chunks {
		if err := checkDimension(dim, ch.Embedding); err != nil {
			return fmt.Errorf("chunk %d: %w", ch.Index, err)
		}
		if len(ch.Text) > MaxTextLength {
			return fmt.Errorf("%w: chunk %d text is %d bytes, limit %d", ErrFieldTooLong, ch.Index, len(ch.Text), MaxTextLength)
		}
	}
	return nil
}

func validateSearch(dim int, query []float32, req SearchRequest) error {
	if err := checkDimension(dim, query); err != nil {
		return err
	}
	if req.TopK < 0 {
		return fmt.Errorf("topK must not be negative, got %d", req.TopK)
	}
	return nil
}
