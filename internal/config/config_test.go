package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
vector:
  backend: sqlite
  collection: manuals
chunking:
  chunk_size: 200
  chunk_overlap: 20
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Vector.Backend != "sqlite" || cfg.Vector.Collection != "manuals" {
		t.Errorf("unexpected vector config: %+v", cfg.Vector)
	}
	if cfg.Chunking.ChunkSize != 200 || cfg.Chunking.ChunkOverlap != 20 {
		t.Errorf("unexpected chunking: %+v", cfg.Chunking)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Vector.HNSWM != 8 || cfg.Vector.EfConstruction != 64 || cfg.Vector.SearchEf != 64 {
		t.Errorf("index defaults not applied: %+v", cfg.Vector)
	}
	if !cfg.Embedding.NormalizeOrDefault() {
		t.Error("normalize should default to true")
	}
}

func TestLoad_defaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chunking.ChunkSize != DefaultChunkSize || cfg.Chunking.ChunkOverlap != DefaultChunkOverlap {
		t.Errorf("chunking defaults: %+v", cfg.Chunking)
	}
	if cfg.Vector.Collection != "documents" || cfg.Vector.Metric != "COSINE" {
		t.Errorf("vector defaults: %+v", cfg.Vector)
	}
	if cfg.Query.DefaultTopK != 5 || cfg.Query.MaxTopK != 50 {
		t.Errorf("query defaults: %+v", cfg.Query)
	}
	if cfg.Storage.UploadDir() != filepath.Join("/data", "uploads") {
		t.Errorf("upload dir: %s", cfg.Storage.UploadDir())
	}
}

func TestLoad_legacyEnvironment(t *testing.T) {
	t.Setenv("DOC_CHUNK_SIZE", "120")
	t.Setenv("DOC_CHUNK_OVERLAP", "10")
	t.Setenv("MILVUS_COLLECTION_NAME", "legacy")
	t.Setenv("VECTOR_STORE_HOST", "vectors.internal")
	t.Setenv("LOG_LEVEL", "debug")
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chunking.ChunkSize != 120 || cfg.Chunking.ChunkOverlap != 10 {
		t.Errorf("chunking from env: %+v", cfg.Chunking)
	}
	if cfg.Vector.Collection != "legacy" {
		t.Errorf("collection = %q", cfg.Vector.Collection)
	}
	if cfg.Vector.Host != "vectors.internal" {
		t.Errorf("host = %q", cfg.Vector.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Storage.DataDir != dataDir {
		t.Errorf("data dir = %q", cfg.Storage.DataDir)
	}
}

func TestLoad_prefixedEnvironmentWins(t *testing.T) {
	t.Setenv("MILVUS_COLLECTION_NAME", "legacy")
	t.Setenv("RAGAPI_VECTOR_COLLECTION", "prefixed")
	t.Setenv("RAGAPI_VECTOR_PORT", "7000")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Vector.Collection != "prefixed" {
		t.Errorf("collection = %q, want prefixed", cfg.Vector.Collection)
	}
	if cfg.Vector.Port != 7000 {
		t.Errorf("port = %d", cfg.Vector.Port)
	}
}

func TestLoad_zeroOverlapIsKept(t *testing.T) {
	path := writeConfig(t, `
chunking:
  chunk_size: 50
  chunk_overlap: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chunking.ChunkOverlap != 0 {
		t.Errorf("overlap = %d, want 0", cfg.Chunking.ChunkOverlap)
	}
}

func TestLoad_rejectsOverlapNotBelowSize(t *testing.T) {
	path := writeConfig(t, `
chunking:
  chunk_size: 100
  chunk_overlap: 100
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for overlap >= chunk_size")
	}
	if !strings.Contains(err.Error(), "chunk_overlap") {
		t.Errorf("error should mention chunk_overlap: %v", err)
	}
}

func TestLoad_expandPathRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "./data"
watch:
  directories: ["./dev/sample"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DataDir != filepath.Join(dir, "data") {
		t.Errorf("data_dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "data", "ragapi.db") {
		t.Errorf("database_path = %q", cfg.Storage.DatabasePath)
	}
	if len(cfg.Watch.Directories) != 1 || cfg.Watch.Directories[0] != filepath.Join(dir, "dev", "sample") {
		t.Errorf("watch.directories = %v", cfg.Watch.Directories)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no windowing", func(c *Config) { c.Chunking.ChunkSize = 0; c.Chunking.ChunkOverlap = 500 }, false},
		{"overlap equals size", func(c *Config) { c.Chunking.ChunkSize = 10; c.Chunking.ChunkOverlap = 10 }, true},
		{"negative overlap", func(c *Config) { c.Chunking.ChunkOverlap = -1 }, true},
		{"unknown metric", func(c *Config) { c.Vector.Metric = "HAMMING" }, true},
		{"lowercase metric", func(c *Config) { c.Vector.Metric = "ip" }, false},
		{"unknown backend", func(c *Config) { c.Vector.Backend = "milvus" }, true},
		{"top k above max", func(c *Config) { c.Query.DefaultTopK = 51 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := Default()
	cfg.Storage.DataDir = dir
	cfg.Vector.Backend = "memory"
	cfg.Watch.Directories = []string{filepath.Join(dir, "docs")}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Vector.Backend != "memory" {
		t.Errorf("backend = %q", loaded.Vector.Backend)
	}
	if len(loaded.Watch.Directories) != 1 || loaded.Watch.Directories[0] != filepath.Join(dir, "docs") {
		t.Errorf("watch directories = %v", loaded.Watch.Directories)
	}
	if loaded.Embedding.Timeout != cfg.Embedding.Timeout {
		t.Errorf("timeout = %v, want %v", loaded.Embedding.Timeout, cfg.Embedding.Timeout)
	}
}

func TestWarnings(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := Default()
	cfg.Embedding.Provider = "openai"
	warnings := cfg.Warnings()
	if len(warnings) == 0 || !strings.Contains(warnings[0], "api_key") {
		t.Errorf("warnings = %v", warnings)
	}
}
