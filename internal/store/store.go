// Package store defines the alternate persistence targets for fragments
// and vectors. The retrieval contract is identical to the local index.
package store

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"normativa-rag/internal/config"
	"normativa-rag/internal/embedding"
	"normativa-rag/internal/models"
	"normativa-rag/internal/store/chromem"
	"normativa-rag/internal/store/postgres"
	"normativa-rag/internal/store/qdrant"
)

// VectorStore persists fragments with their vectors and serves similarity
// search over them.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, fragments []models.Fragment, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]models.RetrievedFragment, error)
}

// New builds the configured store backend. Type "local" has no alternate
// store and returns nil.
func New(cfg *config.StoreConfig) (VectorStore, error) {
	switch cfg.Type {
	case "local", "":
		return nil, nil
	case "chromem":
		if cfg.Chromem == nil {
			return nil, fmt.Errorf("store type chromem selected but no chromem config present")
		}
		return chromem.New(cfg.Chromem)
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("store type qdrant selected but no qdrant config present")
		}
		return qdrant.New(cfg.Qdrant), nil
	case "postgres":
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("store type postgres selected but no postgres config present")
		}
		return postgres.New(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

// Retriever serves queries from a store backend instead of the local
// index. It satisfies the same retrieval contract.
type Retriever struct {
	store    VectorStore
	embedder embeddings.Embedder
}

func NewRetriever(st VectorStore, embedder embeddings.Embedder) *Retriever {
	return &Retriever{store: st, embedder: embedder}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedFragment, error) {
	vec, err := embedding.EmbedQuery(ctx, r.embedder, query)
	if err != nil {
		return nil, err
	}
	return r.store.Search(ctx, vec, k)
}
