package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/model"
)

// memoryStore keeps the collection in process memory. Nothing survives a restart.
type memoryStore struct {
	mu     sync.RWMutex
	ids    map[string]struct{}
	chunks []model.Chunk
}

func init() {
	Register("memory", func(cfg config.VectorStoreConfig) (Store, error) {
		return NewMemory(), nil
	})
}

func NewMemory() Store {
	return &memoryStore{ids: make(map[string]struct{})}
}

func (s *memoryStore) Add(ctx context.Context, chunks []model.Chunk) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if _, ok := s.ids[c.ID]; ok {
			return fmt.Errorf("duplicate chunk id: %s", c.ID)
		}
		if _, ok := seen[c.ID]; ok {
			return fmt.Errorf("duplicate chunk id: %s", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	for _, c := range chunks {
		s.ids[c.ID] = struct{}{}
		s.chunks = append(s.chunks, model.Chunk{
			ID:        c.ID,
			Document:  c.Document,
			Metadata:  cloneMetadata(c.Metadata),
			Embedding: append([]float32(nil), c.Embedding...),
		})
	}
	return nil
}

func (s *memoryStore) Query(ctx context.Context, embedding []float32, k int) ([]model.Hit, error) {
	_ = ctx
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]scored, 0, len(s.chunks))
	for _, c := range s.chunks {
		items = append(items, scored{
			hit:   model.Hit{Document: c.Document, Metadata: cloneMetadata(c.Metadata)},
			score: cosineSimilarity(embedding, c.Embedding),
		})
	}
	return topK(items, k), nil
}

func (s *memoryStore) Count(ctx context.Context) (int, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *memoryStore) Close() error {
	return nil
}
