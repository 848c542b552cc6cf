package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/ragapi/internal/embedding"
	"github.com/hyperjump/ragapi/internal/extract"
	"github.com/hyperjump/ragapi/internal/vector"
)

const testDims = 32

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{"txt", "md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
		{".go", nil, true},
	}
	for _, tt := range tests {
		got := ExtensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("ExtensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func testIndexer(t *testing.T, size, overlap int) (*Indexer, *vector.MemoryStore) {
	t.Helper()
	store, err := vector.NewMemoryStore("documents", testDims, vector.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	chunker, err := NewChunker(size, overlap)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := New(store, embedding.NewHashEmbedder(testDims), extract.DefaultChain(nil), chunker)
	if err != nil {
		t.Fatal(err)
	}
	return idx, store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNew_DimensionMismatch(t *testing.T) {
	store, _ := vector.NewMemoryStore("documents", 8, vector.MetricCosine)
	chunker, _ := NewChunker(100, 10)
	_, err := New(store, embedding.NewHashEmbedder(16), nil, chunker)
	if !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Errorf("err=%v, want ErrDimensionMismatch", err)
	}
}

func TestIngest(t *testing.T) {
	idx, store := testIndexer(t, 10, 3)
	ctx := context.Background()

	res, err := idx.Ingest(ctx, "abc", "aaaa bbbb cccc dddd")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.DocID != "abc" || res.Collection != "documents" {
		t.Errorf("result=%+v", res)
	}
	if res.NumChunks != 3 {
		t.Errorf("NumChunks=%d, want 3", res.NumChunks)
	}
	if n, _ := store.Count(ctx, "abc"); n != 3 {
		t.Errorf("stored %d rows, want 3", n)
	}

	q, _ := embedding.NewHashEmbedder(testDims).Embed(ctx, "bbbb cccc")
	hits, err := store.Search(ctx, q, vector.SearchRequest{TopK: 3, DocID: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	indices := map[int]string{}
	for _, h := range hits {
		indices[h.ChunkIndex] = h.Text
	}
	want := map[int]string{0: "aaaa bbbb", 1: "bbb cccc", 2: "ccc dddd"}
	for i, text := range want {
		if indices[i] != text {
			t.Errorf("chunk %d = %q, want %q", i, indices[i], text)
		}
	}
}

func TestIngest_BlankTextIsUnprocessable(t *testing.T) {
	idx, store := testIndexer(t, 10, 3)
	for _, text := range []string{"", "   \n\t"} {
		_, err := idx.Ingest(context.Background(), "blank", text)
		if !errors.Is(err, ErrUnprocessable) {
			t.Errorf("Ingest(%q) err=%v, want ErrUnprocessable", text, err)
		}
	}
	if n, _ := store.Count(context.Background(), ""); n != 0 {
		t.Errorf("blank ingest stored %d rows", n)
	}
}

func TestIngest_TwiceDuplicates(t *testing.T) {
	idx, store := testIndexer(t, 10, 3)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := idx.Ingest(ctx, "abc", "aaaa bbbb cccc dddd"); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := store.Count(ctx, "abc"); n != 6 {
		t.Errorf("Count=%d, want 6 after ingesting twice", n)
	}
}

func TestIngest_NoChunkingKeepsWholeText(t *testing.T) {
	idx, store := testIndexer(t, 0, 0)
	ctx := context.Background()
	text := strings.Repeat("word ", 500)
	res, err := idx.Ingest(ctx, "big", text)
	if err != nil {
		t.Fatal(err)
	}
	if res.NumChunks != 1 {
		t.Errorf("NumChunks=%d, want 1", res.NumChunks)
	}
	hits, _ := store.Search(ctx, make([]float32, testDims), vector.SearchRequest{TopK: 1})
	if len(hits) != 1 || hits[0].Text != text {
		t.Error("chunk text should be the unmodified input")
	}
}

type failingEmbedder struct {
	*embedding.HashEmbedder
	err   error
	short bool
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out, _ := f.HashEmbedder.EmbedBatch(ctx, texts)
	return out[:len(out)-1], nil
}

func TestIngest_EmbeddingFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("provider down")
	for _, emb := range []*failingEmbedder{
		{HashEmbedder: embedding.NewHashEmbedder(testDims), err: cause},
		{HashEmbedder: embedding.NewHashEmbedder(testDims), short: true},
	} {
		store, _ := vector.NewMemoryStore("documents", testDims, vector.MetricCosine)
		chunker, _ := NewChunker(10, 3)
		idx, err := New(store, emb, nil, chunker)
		if err != nil {
			t.Fatal(err)
		}
		_, err = idx.Ingest(ctx, "d", "aaaa bbbb cccc dddd")
		if err == nil {
			t.Fatal("expected error")
		}
		if emb.err != nil && !errors.Is(err, cause) {
			t.Errorf("err=%v, want wrapped cause", err)
		}
		if emb.short && !errors.Is(err, embedding.ErrCountMismatch) {
			t.Errorf("err=%v, want ErrCountMismatch", err)
		}
		if n, _ := store.Count(ctx, ""); n != 0 {
			t.Errorf("stored %d rows after failure", n)
		}
	}
}

func TestIngest_StoreFailure(t *testing.T) {
	idx, _ := testIndexer(t, 10, 3)
	_, err := idx.Ingest(context.Background(), strings.Repeat("x", vector.MaxDocIDLength+1), "some text")
	if !errors.Is(err, vector.ErrFieldTooLong) {
		t.Errorf("err=%v, want ErrFieldTooLong", err)
	}
	if errors.Is(err, ErrUnprocessable) {
		t.Error("store failure must not be reported as unprocessable")
	}
}

func TestIngestFile(t *testing.T) {
	dir := t.TempDir()
	idx, store := testIndexer(t, 800, 100)
	ctx := context.Background()

	p := writeFile(t, dir, "report.final.txt", "Quarterly numbers look good.")
	res, err := idx.IngestFile(ctx, p)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if res.DocID != "report.final" || res.NumChunks != 1 {
		t.Errorf("result=%+v", res)
	}
	if n, _ := store.Count(ctx, "report.final"); n != 1 {
		t.Errorf("Count=%d", n)
	}
}

func TestIngestFile_Excel(t *testing.T) {
	dir := t.TempDir()
	idx, store := testIndexer(t, 800, 100)
	path := filepath.Join(dir, "budget.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Marketing budget")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := idx.IngestFile(context.Background(), path); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	hits, _ := store.Search(context.Background(), make([]float32, testDims), vector.SearchRequest{TopK: 1, DocID: "budget"})
	if len(hits) != 1 || !strings.Contains(hits[0].Text, "Marketing budget") {
		t.Errorf("hits=%+v", hits)
	}
}

func TestIngestFile_EmptyFileIsUnprocessable(t *testing.T) {
	dir := t.TempDir()
	idx, _ := testIndexer(t, 800, 100)
	p := writeFile(t, dir, "empty.txt", "  \n")
	_, err := idx.IngestFile(context.Background(), p)

	var fe *FileError
	if !errors.As(err, &fe) {
		t.Fatalf("err=%v, want *FileError", err)
	}
	if fe.Name != "empty.txt" {
		t.Errorf("Name=%q", fe.Name)
	}
	if !errors.Is(err, ErrUnprocessable) {
		t.Errorf("err=%v, want ErrUnprocessable", err)
	}
	if err.Error() != "failed to extract text from empty.txt" {
		t.Errorf("message=%q", err.Error())
	}
}

func TestIngestFiles_AbortsOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	idx, store := testIndexer(t, 800, 100)
	ctx := context.Background()
	a := writeFile(t, dir, "a.txt", "alpha")
	bad := writeFile(t, dir, "bad.txt", "")
	c := writeFile(t, dir, "c.txt", "gamma")

	results, err := idx.IngestFiles(ctx, []string{a, bad, c})
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("err=%v, want ErrUnprocessable", err)
	}
	if len(results) != 1 || results[0].DocID != "a" {
		t.Errorf("results=%+v", results)
	}
	if n, _ := store.Count(ctx, "a"); n != 1 {
		t.Error("file before the failure should stay written")
	}
	if n, _ := store.Count(ctx, "c"); n != 0 {
		t.Error("file after the failure should not be ingested")
	}
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	idx, store := testIndexer(t, 800, 100)
	ctx := context.Background()
	writeFile(t, dir, "one.txt", "first")
	writeFile(t, dir, "skip.go", "package main")
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "sub"), "two.md", "second")

	results, err := idx.IngestDirectory(ctx, dir, []string{".txt", ".md"})
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("ingested %d files, want 2", len(results))
	}
	if n, _ := store.Count(ctx, "skip"); n != 0 {
		t.Error("filtered extension was ingested")
	}

	if _, err := idx.IngestDirectory(ctx, filepath.Join(dir, "one.txt"), nil); err == nil {
		t.Error("expected error for non-directory")
	}
}

func TestReindex(t *testing.T) {
	dir := t.TempDir()
	idx, store := testIndexer(t, 10, 3)
	ctx := context.Background()
	p := writeFile(t, dir, "doc.txt", "aaaa bbbb cccc dddd")

	if _, err := idx.IngestFile(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.IngestFile(ctx, p); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Count(ctx, "doc"); n != 6 {
		t.Fatalf("Count=%d, want 6", n)
	}

	writeFile(t, dir, "doc.txt", "short")
	res, err := idx.Reindex(ctx, p)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if res.NumChunks != 1 {
		t.Errorf("NumChunks=%d, want 1", res.NumChunks)
	}
	if n, _ := store.Count(ctx, "doc"); n != 1 {
		t.Errorf("Count=%d after reindex, want 1", n)
	}

	writeFile(t, dir, "doc.txt", "")
	if _, err := idx.Reindex(ctx, p); !errors.Is(err, ErrUnprocessable) {
		t.Errorf("err=%v, want ErrUnprocessable", err)
	}
	if n, _ := store.Count(ctx, "doc"); n != 1 {
		t.Error("failed reindex should keep the previous rows")
	}
}

func TestDeleteDocument(t *testing.T) {
	dir := t.TempDir()
	idx, store := testIndexer(t, 10, 3)
	ctx := context.Background()
	if _, err := idx.Ingest(ctx, "abc", "aaaa bbbb cccc dddd"); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Ingest(ctx, "other", "eeee"); err != nil {
		t.Fatal(err)
	}

	n, err := idx.DeleteDocument(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("deleted %d, want 3", n)
	}
	if n, _ := idx.DeleteDocument(ctx, "abc"); n != 0 {
		t.Errorf("second delete removed %d, want 0", n)
	}
	if n, _ := store.Count(ctx, "other"); n != 1 {
		t.Error("delete removed another document")
	}

	p := writeFile(t, dir, "other.txt", "eeee")
	if n, err := idx.RemoveFile(ctx, p); err != nil || n != 1 {
		t.Errorf("RemoveFile n=%d err=%v", n, err)
	}
}
