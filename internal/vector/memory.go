package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
)

type memoryRow struct {
	pk         int64
	docID      string
	chunkIndex int
	text       string
	vector     []float32
}

// MemoryStore is an in-process store with brute-force search.
// Suitable for tests and small corpora; Save and Load persist it to a snapshot file.
type MemoryStore struct {
	collection string
	dimension  int
	metric     Metric
	index      IndexParams
	rows       []memoryRow
	nextPK     int64
	mu         sync.RWMutex
}

// NewMemoryStore creates an empty collection with the given dimension and metric.
func NewMemoryStore(collection string, dimension int, metric Metric) (*MemoryStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if metric == "" {
		metric = MetricCosine
	}
	return &MemoryStore{
		collection: collection,
		dimension:  dimension,
		metric:     metric,
		index:      IndexParams{Type: "FLAT"},
		nextPK:     1,
	}, nil
}

func (m *MemoryStore) Collection() string { return m.collection }
func (m *MemoryStore) Dimension() int     { return m.dimension }
func (m *MemoryStore) Metric() Metric     { return m.metric }

// Upsert appends one row per chunk.
func (m *MemoryStore) Upsert(ctx context.Context, docID string, chunks []Chunk) (int, error) {
	if err := validateChunks(m.dimension, docID, chunks); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range chunks {
		vec := make([]float32, m.dimension)
		copy(vec, ch.Embedding)
		m.rows = append(m.rows, memoryRow{
			pk:         m.nextPK,
			docID:      docID,
			chunkIndex: ch.Index,
			text:       ch.Text,
			vector:     vec,
		})
		m.nextPK++
	}
	return len(chunks), nil
}

// DeleteByDocID removes the rows of docID by rebuilding the slice.
func (m *MemoryStore) DeleteByDocID(ctx context.Context, docID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]memoryRow, 0, len(m.rows))
	var removed int64
	for _, r := range m.rows {
		if r.docID == docID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return removed, nil
}

// Search scores every matching row and returns the best req.TopK.
func (m *MemoryStore) Search(ctx context.Context, query []float32, req SearchRequest) ([]Hit, error) {
	if err := validateSearch(m.dimension, query, req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if req.TopK == 0 || len(m.rows) == 0 {
		return []Hit{}, nil
	}
	scored := make([]scoredRow, 0, len(m.rows))
	for _, r := range m.rows {
		if req.DocID != "" && r.docID != req.DocID {
			continue
		}
		scored = append(scored, scoredRow{
			pk: r.pk,
			hit: Hit{
				Score:      Score(m.metric, query, r.vector),
				DocID:      r.docID,
				ChunkIndex: r.chunkIndex,
				Text:       r.text,
			},
		})
	}
	return topK(scored, req.TopK), nil
}

// Count returns the rows of docID, or all rows when docID is empty.
func (m *MemoryStore) Count(ctx context.Context, docID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if docID == "" {
		return int64(len(m.rows)), nil
	}
	var n int64
	for _, r := range m.rows {
		if r.docID == docID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Describe(ctx context.Context) (*CollectionInfo, error) {
	rows, _ := m.Count(ctx, "")
	return &CollectionInfo{
		Name:      m.collection,
		Dimension: m.dimension,
		Metric:    m.metric,
		Index:     m.index,
		Rows:      rows,
	}, nil
}

// Save persists the store to path. Directory is created if needed. Format: dimension (4),
// next pk (8), n (4), then per row: pk (8), doc id (4+len), chunk index (4), text (4+len),
// vector (dimension*4 bytes).
func (m *MemoryStore) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	le := binary.LittleEndian
	if err := binary.Write(w, le, uint32(m.dimension)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, le, m.nextPK); err != nil {
		return fmt.Errorf("write next pk: %w", err)
	}
	if err := binary.Write(w, le, uint32(len(m.rows))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, r := range m.rows {
		if err := binary.Write(w, le, r.pk); err != nil {
			return fmt.Errorf("write pk: %w", err)
		}
		if err := writeString(w, r.docID); err != nil {
			return fmt.Errorf("write doc id: %w", err)
		}
		if err := binary.Write(w, le, uint32(r.chunkIndex)); err != nil {
			return fmt.Errorf("write chunk index: %w", err)
		}
		if err := writeString(w, r.text); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(r.vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot from path and replaces the in-memory contents. Dimensions must match.
// If the file does not exist, no error is returned and the store is unchanged.
func (m *MemoryStore) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	le := binary.LittleEndian
	var dim, n uint32
	var nextPK int64
	if err := binary.Read(r, le, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimension {
		return fmt.Errorf("%w: snapshot has %d, collection expects %d", ErrDimensionMismatch, dim, m.dimension)
	}
	if err := binary.Read(r, le, &nextPK); err != nil {
		return fmt.Errorf("read next pk: %w", err)
	}
	if err := binary.Read(r, le, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	rows := make([]memoryRow, 0, n)
	buf := make([]byte, m.dimension*4)
	for i := uint32(0); i < n; i++ {
		var row memoryRow
		var idx uint32
		if err := binary.Read(r, le, &row.pk); err != nil {
			return fmt.Errorf("read pk: %w", err)
		}
		if row.docID, err = readString(r); err != nil {
			return fmt.Errorf("read doc id: %w", err)
		}
		if err := binary.Read(r, le, &idx); err != nil {
			return fmt.Errorf("read chunk index: %w", err)
		}
		row.chunkIndex = int(idx)
		if row.text, err = readString(r); err != nil {
			return fmt.Errorf("read text: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		row.vector = bytesToFloat32Slice(buf)
		rows = append(rows, row)
	}
	m.mu.Lock()
	m.rows = rows
	m.nextPK = nextPK
	m.mu.Unlock()
	return nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
