// Package config provides configuration loading and structs for the ragapi service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides (RAGAPI_VECTOR_HOST, ...).
const EnvPrefix = "RAGAPI"

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug" mapstructure:"debug"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Vector    VectorConfig    `yaml:"vector" mapstructure:"vector"`
	Chunking  ChunkingConfig  `yaml:"chunking" mapstructure:"chunking"`
	Query     QueryConfig     `yaml:"query" mapstructure:"query"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `yaml:"host" mapstructure:"host"`
	Port           int    `yaml:"port" mapstructure:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// StorageConfig holds local paths. Uploads are staged under DataDir/uploads.
type StorageConfig struct {
	DataDir      string `yaml:"data_dir" mapstructure:"data_dir"`
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
	SnapshotPath string `yaml:"snapshot_path" mapstructure:"snapshot_path"`
}

// UploadDir returns the directory uploaded files are staged in.
func (s StorageConfig) UploadDir() string {
	return filepath.Join(s.DataDir, "uploads")
}

// EmbeddingConfig selects and configures the embedding provider. Dimensions 0
// lets the provider decide (384 for onnx and hash, probed for HTTP providers).
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider" mapstructure:"provider"`
	ModelName  string        `yaml:"model_name" mapstructure:"model_name"`
	ModelPath  string        `yaml:"model_path" mapstructure:"model_path"`
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`
	Dimensions int           `yaml:"dimensions" mapstructure:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Normalize  *bool         `yaml:"normalize" mapstructure:"normalize"`
	CacheSize  int           `yaml:"cache_size" mapstructure:"cache_size"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
}

// NormalizeOrDefault returns whether embeddings are L2-normalised; defaults to true when unset.
func (e *EmbeddingConfig) NormalizeOrDefault() bool {
	if e.Normalize != nil {
		return *e.Normalize
	}
	return true
}

// VectorConfig selects the vector store backend and its collection parameters.
type VectorConfig struct {
	Backend        string `yaml:"backend" mapstructure:"backend"`
	Host           string `yaml:"host" mapstructure:"host"`
	Port           int    `yaml:"port" mapstructure:"port"`
	Collection     string `yaml:"collection" mapstructure:"collection"`
	Metric         string `yaml:"metric" mapstructure:"metric"`
	HNSWM          int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	EfConstruction int    `yaml:"ef_construction" mapstructure:"ef_construction"`
	SearchEf       int    `yaml:"search_ef" mapstructure:"search_ef"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// ChunkingConfig holds the default window size and overlap, in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
}

// QueryConfig bounds the number of hits a query may ask for.
type QueryConfig struct {
	DefaultTopK int `yaml:"default_top_k" mapstructure:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k" mapstructure:"max_top_k"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories" mapstructure:"directories"`
	Extensions  []string `yaml:"extensions" mapstructure:"extensions"`
	Recursive   *bool    `yaml:"recursive" mapstructure:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// TelemetryConfig configures OpenTelemetry tracing. Empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name" mapstructure:"service_name"`
	Environment  string  `yaml:"environment" mapstructure:"environment"`
	SampleRate   float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// legacyEnv maps config keys to the environment names the service has always read.
// Prefixed RAGAPI_* names win over these when both are set.
var legacyEnv = map[string][]string{
	"embedding.model_name":   {"EMBEDDING_MODEL_NAME"},
	"vector.host":            {"VECTOR_STORE_HOST", "MILVUS_HOST"},
	"vector.port":            {"VECTOR_STORE_PORT", "MILVUS_PORT"},
	"vector.collection":      {"COLLECTION_NAME", "MILVUS_COLLECTION_NAME"},
	"chunking.chunk_size":    {"DOC_CHUNK_SIZE"},
	"chunking.chunk_overlap": {"DOC_CHUNK_OVERLAP"},
	"storage.data_dir":       {"DATA_DIR"},
	"log.level":              {"LOG_LEVEL"},
}

// Load reads configuration from the YAML file at path (optional when empty) and
// the environment, applies defaults, expands relative paths and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envs := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyDefaults(&cfg)

	if path != "" {
		configDir := filepath.Dir(path)
		cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
		cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
		cfg.Storage.SnapshotPath = expandPath(cfg.Storage.SnapshotPath, configDir)
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
		for i := range cfg.Watch.Directories {
			cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that would make the service misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.Chunking.ChunkSize > 0 {
		if c.Chunking.ChunkOverlap < 0 {
			errs = append(errs, fmt.Errorf("chunk_overlap %d must not be negative", c.Chunking.ChunkOverlap))
		}
		if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
			errs = append(errs, fmt.Errorf("chunk_overlap %d must be less than chunk_size %d", c.Chunking.ChunkOverlap, c.Chunking.ChunkSize))
		}
	}
	if c.Query.DefaultTopK < 1 || c.Query.DefaultTopK > c.Query.MaxTopK {
		errs = append(errs, fmt.Errorf("default_top_k %d must be within 1..%d", c.Query.DefaultTopK, c.Query.MaxTopK))
	}
	switch strings.ToUpper(c.Vector.Metric) {
	case "COSINE", "IP", "L2":
	default:
		errs = append(errs, fmt.Errorf("unknown vector metric %q (supported: COSINE, IP, L2)", c.Vector.Metric))
	}
	switch c.Vector.Backend {
	case "qdrant", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown vector backend %q (supported: qdrant, sqlite, memory)", c.Vector.Backend))
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("embedding dimensions %d must not be negative", c.Embedding.Dimensions))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Warnings returns non-fatal configuration issues worth logging at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		warnings = append(warnings, "embedding provider 'openai' is configured but api_key is empty")
	}
	if c.Embedding.Provider == "hash" {
		warnings = append(warnings, "embedding provider 'hash' produces non-semantic vectors; use it for tests only")
	}
	if c.Chunking.ChunkSize <= 0 {
		warnings = append(warnings, "chunk_size <= 0 disables windowing; each document becomes a single chunk")
	}
	return warnings
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath resolves a relative path against the directory of the config file.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}
