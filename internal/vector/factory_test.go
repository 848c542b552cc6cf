package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), Options{Backend: BackendMemory, Collection: "documents", Dimension: 3})
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	defer s.Close()

	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("got %T, want *MemoryStore", s)
	}
	if s.Metric() != MetricCosine {
		t.Errorf("Metric=%s, want COSINE", s.Metric())
	}
}

func TestOpen_MemoryLoadsSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.bin")
	m, _ := NewMemoryStore("documents", 2, MetricCosine)
	_, _ = m.Upsert(ctx, "d", []Chunk{{Index: 0, Text: "t", Embedding: []float32{1, 0}}})
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}

	s, err := Open(ctx, Options{Backend: BackendMemory, Collection: "documents", Dimension: 2, SnapshotPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx, "d"); n != 1 {
		t.Errorf("Count=%d, want 1", n)
	}
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), Options{
		Backend:      BackendSQLite,
		Collection:   "documents",
		Dimension:    3,
		DatabasePath: filepath.Join(t.TempDir(), "vec.db"),
	})
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	defer s.Close()

	info, err := s.Describe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Index != DefaultIndexParams() {
		t.Errorf("index=%+v, want default HNSW params", info.Index)
	}
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "milvus", Collection: "documents", Dimension: 3})
	if err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOpen_MissingCollection(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: BackendMemory, Dimension: 3})
	if err == nil {
		t.Error("expected error for empty collection name")
	}
}

func TestOpen_InvalidDimension(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: BackendMemory, Collection: "documents"})
	if err == nil {
		t.Error("expected error for zero dimension")
	}
}
