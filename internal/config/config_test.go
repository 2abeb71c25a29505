package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := &Config{DataDir: "from-file"}
	err := applyEnv(cfg, mapLookup(map[string]string{
		"CORS_ORIGINS":     " http://a.test, ,http://b.test ",
		"CHROMA_DIR":       "/var/lib/chroma",
		"DATA_DIR":         "/srv/docs",
		"GENERATION_MODEL": "gen-x",
		"EMBEDDING_MODEL":  "emb-x",
		"GOOGLE_API_KEY":   "secret",
		"PORT":             "9001",
	}))
	require.NoError(t, err)
	require.NoError(t, finalize(cfg))

	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	require.Equal(t, "/var/lib/chroma", cfg.VectorStore.Dir)
	require.Equal(t, "/srv/docs", cfg.DataDir)
	require.Equal(t, "gen-x", cfg.AI.GenerationModel)
	require.Equal(t, "emb-x", cfg.AI.EmbeddingModel)
	require.Equal(t, "gemini", cfg.AI.Provider)
	require.Equal(t, "secret", cfg.AI.Data["api_key"])
	require.Equal(t, 9001, cfg.Port)
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, applyEnv(cfg, mapLookup(nil)))
	require.NoError(t, finalize(cfg))

	require.Empty(t, cfg.CORSOrigins)
	require.Equal(t, DefaultPort, cfg.Port)
	require.Equal(t, DefaultDataDir, cfg.DataDir)
	require.Equal(t, "sqlite", cfg.VectorStore.Type)
	require.Equal(t, DefaultChromaDir, cfg.VectorStore.Dir)
	require.Equal(t, DefaultCollection, cfg.VectorStore.Collection)
	require.Equal(t, DefaultGenerationModel, cfg.AI.GenerationModel)
	require.Equal(t, DefaultEmbeddingModel, cfg.AI.EmbeddingModel)
	require.Equal(t, DefaultChunkWords, cfg.Loader.ChunkWords)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Nil(t, cfg.AI.Data)
}

func TestOpenAIProviderKeys(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, applyEnv(cfg, mapLookup(map[string]string{
		"AI_PROVIDER":     "openai",
		"GOOGLE_API_KEY":  "ignored",
		"OPENAI_API_KEY":  "sk-test",
		"OPENAI_BASE_URL": "http://localhost:11434/v1",
	})))
	require.Equal(t, "sk-test", cfg.AI.Data["api_key"])
	require.Equal(t, "http://localhost:11434/v1", cfg.AI.Data["base_url"])
}

func TestFinalizeRejectsBadStore(t *testing.T) {
	require.Error(t, finalize(&Config{VectorStore: VectorStoreConfig{Type: "chroma"}}))
	require.Error(t, finalize(&Config{VectorStore: VectorStoreConfig{Type: "pgvector"}}))
	require.NoError(t, finalize(&Config{VectorStore: VectorStoreConfig{Type: "pgvector", DSN: "postgres://x"}}))
}

func TestApplyEnvInvalidPort(t *testing.T) {
	err := applyEnv(&Config{}, mapLookup(map[string]string{"PORT": "eighty"}))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"port": 8123, "data_dir": "docs", "loader": {"chunk_words": 64}, "vector_store": {"type": "memory"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("DATA_DIR", "")
	t.Setenv("PORT", "")
	t.Setenv("VECTOR_STORE", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8123, cfg.Port)
	require.Equal(t, "docs", cfg.DataDir)
	require.Equal(t, 64, cfg.Loader.ChunkWords)
	require.Equal(t, "memory", cfg.VectorStore.Type)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
