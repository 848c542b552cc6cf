package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Default chunking and query values of the service.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
	DefaultTopK         = 5
	MaxTopK             = 50
)

var defaultExtensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".xls", ".pptx", ".odp", ".ods"}

// Default returns a fully populated configuration.
func Default() *Config {
	normalize := true
	recursive := true
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			MaxUploadBytes: 64 << 20,
		},
		Storage: StorageConfig{
			DataDir: "/data",
		},
		Embedding: EmbeddingConfig{
			Provider:   "onnx",
			ModelName:  "sentence-transformers/all-MiniLM-L6-v2",
			MaxTokens:  256,
			Normalize:  &normalize,
			CacheSize:  10000,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Vector: VectorConfig{
			Backend:        "qdrant",
			Host:           "localhost",
			Port:           6334,
			Collection:     "documents",
			Metric:         "COSINE",
			HNSWM:          8,
			EfConstruction: 64,
			SearchEf:       64,
			MaxRetries:     3,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		Query: QueryConfig{
			DefaultTopK: DefaultTopK,
			MaxTopK:     MaxTopK,
		},
		Watch: WatchConfig{
			Extensions: append([]string(nil), defaultExtensions...),
			Recursive:  &recursive,
		},
		Log: LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			ServiceName: "ragapi",
			Environment: "development",
			SampleRate:  1.0,
		},
	}
}

// setDefaults registers every key with viper so environment overrides apply
// even when the key is absent from the config file.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("debug", false)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.database_path", "")
	v.SetDefault("storage.snapshot_path", "")
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model_name", d.Embedding.ModelName)
	v.SetDefault("embedding.model_path", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.max_tokens", d.Embedding.MaxTokens)
	v.SetDefault("embedding.normalize", true)
	v.SetDefault("embedding.cache_size", d.Embedding.CacheSize)
	v.SetDefault("embedding.timeout", d.Embedding.Timeout)
	v.SetDefault("embedding.max_retries", d.Embedding.MaxRetries)
	v.SetDefault("vector.backend", d.Vector.Backend)
	v.SetDefault("vector.host", d.Vector.Host)
	v.SetDefault("vector.port", d.Vector.Port)
	v.SetDefault("vector.collection", d.Vector.Collection)
	v.SetDefault("vector.metric", d.Vector.Metric)
	v.SetDefault("vector.hnsw_m", d.Vector.HNSWM)
	v.SetDefault("vector.ef_construction", d.Vector.EfConstruction)
	v.SetDefault("vector.search_ef", d.Vector.SearchEf)
	v.SetDefault("vector.max_retries", d.Vector.MaxRetries)
	v.SetDefault("chunking.chunk_size", d.Chunking.ChunkSize)
	v.SetDefault("chunking.chunk_overlap", d.Chunking.ChunkOverlap)
	v.SetDefault("query.default_top_k", d.Query.DefaultTopK)
	v.SetDefault("query.max_top_k", d.Query.MaxTopK)
	v.SetDefault("watch.directories", []string{})
	v.SetDefault("watch.extensions", d.Watch.Extensions)
	v.SetDefault("watch.recursive", true)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.environment", d.Telemetry.Environment)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)
}

// ApplyDefaults sets default values for zero values in cfg. Chunking is left
// alone: a zero chunk size or overlap is a meaningful setting.
func ApplyDefaults(cfg *Config) {
	d := Default()
	if cfg.Server.Host == "" {
		cfg.Server.Host = d.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = d.Server.MaxUploadBytes
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = d.Storage.DataDir
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = filepath.Join(cfg.Storage.DataDir, "ragapi.db")
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = d.Embedding.Provider
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = d.Embedding.ModelName
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = filepath.Join(cfg.Storage.DataDir, "models", "all-MiniLM-L6-v2.onnx")
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = d.Embedding.MaxTokens
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = d.Embedding.CacheSize
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = d.Embedding.Timeout
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = d.Vector.Backend
	}
	if cfg.Vector.Host == "" {
		cfg.Vector.Host = d.Vector.Host
	}
	if cfg.Vector.Port == 0 {
		cfg.Vector.Port = d.Vector.Port
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = d.Vector.Collection
	}
	if cfg.Vector.Metric == "" {
		cfg.Vector.Metric = d.Vector.Metric
	}
	if cfg.Vector.HNSWM == 0 {
		cfg.Vector.HNSWM = d.Vector.HNSWM
	}
	if cfg.Vector.EfConstruction == 0 {
		cfg.Vector.EfConstruction = d.Vector.EfConstruction
	}
	if cfg.Vector.SearchEf == 0 {
		cfg.Vector.SearchEf = d.Vector.SearchEf
	}
	if cfg.Query.MaxTopK == 0 {
		cfg.Query.MaxTopK = d.Query.MaxTopK
	}
	if cfg.Query.DefaultTopK == 0 {
		cfg.Query.DefaultTopK = d.Query.DefaultTopK
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = d.Watch.Extensions
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
}
