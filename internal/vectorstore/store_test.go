package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/model"
)

func chunk(id, doc, source string, emb ...float32) model.Chunk {
	md := map[string]string{}
	if source != "" {
		md[model.MetadataSource] = source
	}
	return model.Chunk{ID: id, Document: doc, Metadata: md, Embedding: emb}
}

func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("empty collection", func(t *testing.T) {
		s := open(t)
		hits, err := s.Query(ctx, []float32{1, 0}, 4)
		require.NoError(t, err)
		require.Empty(t, hits)
		n, err := s.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, n)
	})

	t.Run("ranks by cosine similarity", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Add(ctx, []model.Chunk{
			chunk("a", "east", "a.txt", 1, 0),
			chunk("b", "north", "b.txt", 0, 1),
			chunk("c", "north east", "c.txt", 1, 1),
			chunk("d", "no source", "", -1, 0),
		}))
		hits, err := s.Query(ctx, []float32{1, 0.1}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		require.Equal(t, "east", hits[0].Document)
		require.Equal(t, "north east", hits[1].Document)
		require.Equal(t, "north", hits[2].Document)
		require.Equal(t, "a.txt", hits[0].Source())

		hits, err = s.Query(ctx, []float32{-1, 0}, 1)
		require.NoError(t, err)
		require.Equal(t, model.UnknownSource, hits[0].Source())
	})

	t.Run("k zero", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Add(ctx, []model.Chunk{chunk("a", "x", "a.txt", 1)}))
		hits, err := s.Query(ctx, []float32{1}, 0)
		require.NoError(t, err)
		require.Empty(t, hits)
	})

	t.Run("k larger than collection", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Add(ctx, []model.Chunk{chunk("a", "x", "a.txt", 1), chunk("b", "y", "b.txt", 1)}))
		hits, err := s.Query(ctx, []float32{1}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)
	})

	t.Run("grows monotonically", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Add(ctx, []model.Chunk{chunk("a", "x", "a.txt", 1)}))
		require.NoError(t, s.Add(ctx, []model.Chunk{chunk("b", "x", "a.txt", 1)}))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, n)
	})

	t.Run("duplicate id rejects whole batch", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Add(ctx, []model.Chunk{chunk("a", "x", "a.txt", 1)}))
		err := s.Add(ctx, []model.Chunk{chunk("b", "y", "b.txt", 1), chunk("a", "z", "c.txt", 1)})
		require.Error(t, err)
		n, err := s.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemory()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := New(config.VectorStoreConfig{Type: "sqlite", Dir: t.TempDir()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "chroma")
	cfg := config.VectorStoreConfig{Type: "sqlite", Dir: dir, Collection: "docs"}

	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, []model.Chunk{chunk("a", "kept", "a.txt", 0.5, 0.5)}))
	require.NoError(t, s.Close())
	_, err = os.Stat(filepath.Join(dir, sqliteFile))
	require.NoError(t, err)

	s, err = New(cfg)
	require.NoError(t, err)
	defer s.Close()
	hits, err := s.Query(ctx, []float32{1, 1}, 4)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "kept", hits[0].Document)

	other, err := New(config.VectorStoreConfig{Type: "sqlite", Dir: dir, Collection: "other"})
	require.NoError(t, err)
	defer other.Close()
	n, err := other.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestSQLiteStore_LargeBatch(t *testing.T) {
	ctx := context.Background()
	s, err := New(config.VectorStoreConfig{Type: "sqlite", Dir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()
	chunks := make([]model.Chunk, 0, 450)
	for i := 0; i < 450; i++ {
		chunks = append(chunks, chunk(fmt.Sprintf("id-%d", i), "doc", "f.txt", float32(i), 1))
	}
	require.NoError(t, s.Add(ctx, chunks))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 450, n)
}

func TestPgvectorStore(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping pgvector test")
	}
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := New(config.VectorStoreConfig{Type: "pgvector", DSN: dsn, Collection: "test_" + uuid.NewString()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(config.VectorStoreConfig{Type: "chroma"})
	require.Error(t, err)
	_, err = New(config.VectorStoreConfig{})
	require.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	require.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	require.Equal(t, float32(0), cosineSimilarity([]float32{1}, []float32{1, 2}))
	require.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
