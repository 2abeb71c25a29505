package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logger"
)

const (
	DefaultPort            = 8000
	DefaultDataDir         = "data"
	DefaultChromaDir       = ".chroma"
	DefaultCollection      = "docs"
	DefaultGenerationModel = "gemini-2.0-flash-001"
	DefaultEmbeddingModel  = "gemini-embedding-001"
	DefaultChunkWords      = 500
	DefaultMaxUploadBytes  = 32 * 1024 * 1024
	DefaultShutdownTimeout = 5
)

type Config struct {
	Port              int               `json:"port"`
	DataDir           string            `json:"data_dir"`
	CORSOrigins       []string          `json:"cors_origins"`
	MaxUploadBytes    int64             `json:"max_upload_bytes"`
	ShutdownTimeout   int               `json:"shutdown_timeout"`
	IngestRateLimitMs int               `json:"ingest_rate_limit_ms"`
	LogConfig         logger.LogConfig  `json:"log_config"`
	Loader            LoaderConfig      `json:"loader"`
	AI                AIConfig          `json:"ai"`
	VectorStore       VectorStoreConfig `json:"vector_store"`
}

type LoaderConfig struct {
	ChunkWords    int  `json:"chunk_words"`
	MarkdownPlain bool `json:"markdown_plain"`
}

type AIConfig struct {
	Provider        string                 `json:"provider"`
	GenerationModel string                 `json:"generation_model"`
	EmbeddingModel  string                 `json:"embedding_model"`
	Timeout         int                    `json:"timeout"`
	EmbedBatchSize  int                    `json:"embed_batch_size"`
	QueryCacheSize  int                    `json:"query_cache_size"`
	QueryCacheTTL   int                    `json:"query_cache_ttl"`
	Data            map[string]interface{} `json:"data"`
}

type VectorStoreConfig struct {
	Type       string `json:"type"`
	Dir        string `json:"dir"`
	Collection string `json:"collection"`
	DSN        string `json:"dsn"`
}

type lookupFunc func(key string) (string, bool)

// Load reads an optional JSON config file, then applies environment overrides.
// An empty path means environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup lookupFunc) error {
	if v, ok := lookup("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("CHROMA_DIR"); ok && v != "" {
		cfg.VectorStore.Dir = v
	}
	if v, ok := lookup("VECTOR_STORE"); ok && v != "" {
		cfg.VectorStore.Type = v
	}
	if v, ok := lookup("DATABASE_DSN"); ok && v != "" {
		cfg.VectorStore.DSN = v
	}
	if v, ok := lookup("DATA_DIR"); ok && v != "" {
		cfg.DataDir = v
	}
	if v, ok := lookup("GENERATION_MODEL"); ok && v != "" {
		cfg.AI.GenerationModel = v
	}
	if v, ok := lookup("EMBEDDING_MODEL"); ok && v != "" {
		cfg.AI.EmbeddingModel = v
	}
	if v, ok := lookup("AI_PROVIDER"); ok && v != "" {
		cfg.AI.Provider = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.LogConfig.Level = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	keyEnvs := []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
	if strings.EqualFold(cfg.AI.Provider, "openai") {
		keyEnvs = []string{"OPENAI_API_KEY"}
		if v, ok := lookup("OPENAI_BASE_URL"); ok && v != "" {
			setData(cfg, "base_url", v)
		}
	}
	for _, key := range keyEnvs {
		if v, ok := lookup(key); ok && v != "" {
			setData(cfg, "api_key", v)
			break
		}
	}
	return nil
}

func finalize(cfg *Config) error {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port out of range: %d", cfg.Port)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.LogConfig.File == "" {
		cfg.LogConfig.Console = true
	}
	if cfg.Loader.ChunkWords <= 0 {
		cfg.Loader.ChunkWords = DefaultChunkWords
	}
	if cfg.AI.GenerationModel == "" {
		cfg.AI.GenerationModel = DefaultGenerationModel
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.AI.Timeout < 0 || cfg.AI.EmbedBatchSize < 0 {
		return fmt.Errorf("ai.timeout and ai.embed_batch_size must not be negative")
	}
	if cfg.AI.QueryCacheSize > 0 && cfg.AI.QueryCacheTTL <= 0 {
		cfg.AI.QueryCacheTTL = 3600
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = DefaultCollection
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "sqlite"
	}
	switch strings.ToLower(cfg.VectorStore.Type) {
	case "sqlite":
		if cfg.VectorStore.Dir == "" {
			cfg.VectorStore.Dir = DefaultChromaDir
		}
	case "pgvector":
		if cfg.VectorStore.DSN == "" {
			return fmt.Errorf("vector_store.dsn is required for pgvector store")
		}
	case "memory":
	default:
		return fmt.Errorf("vector_store.type must be sqlite, pgvector or memory")
	}
	return nil
}

func setData(cfg *Config, key, value string) {
	if cfg.AI.Data == nil {
		cfg.AI.Data = map[string]interface{}{}
	}
	cfg.AI.Data[key] = value
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
