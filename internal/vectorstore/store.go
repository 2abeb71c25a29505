package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/model"
)

// Store is a named, append-only collection of embedded chunks ranked by
// cosine similarity.
type Store interface {
	// Add writes every chunk or none of them.
	Add(ctx context.Context, chunks []model.Chunk) error
	// Query returns up to k hits, most similar first.
	Query(ctx context.Context, embedding []float32, k int) ([]model.Hit, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

type Factory func(cfg config.VectorStoreConfig) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.VectorStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	if cfg.Collection == "" {
		cfg.Collection = config.DefaultCollection
	}
	return factory(cfg)
}
