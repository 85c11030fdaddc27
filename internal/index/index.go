// Package index implements the local flat similarity index: a gob-encoded
// vector file paired row-for-row with a tabular fragment store.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tmc/langchaingo/embeddings"

	"normativa-rag/internal/embedding"
	"normativa-rag/internal/models"
)

var (
	// ErrIndexNotFound means no index has been built yet. Recoverable by
	// running ingestion.
	ErrIndexNotFound = errors.New("vector index not found; run ingestion first")

	// ErrIndexBuild aborts a build run. A half-built index is never
	// activated.
	ErrIndexBuild = errors.New("index build failed")

	// ErrModelMismatch means the query embedder and the index were not
	// produced by the same embedding model version.
	ErrModelMismatch = errors.New("embedding model mismatch; rebuild the index")
)

// Index holds normalized fragment vectors and their fragments in identical
// ordinal positions. Read-only once built.
type Index struct {
	Model     string
	Dimension int
	Fragments []models.Fragment
	Vectors   [][]float32
}

// Build assembles an index from fragments and their unit-length vectors.
// The model fingerprint is recorded so query embedders can be checked.
func Build(model string, fragments []models.Fragment, vectors [][]float32) (*Index, error) {
	if len(fragments) == 0 {
		return nil, fmt.Errorf("%w: no fragments to index", ErrIndexBuild)
	}
	if len(vectors) != len(fragments) {
		return nil, fmt.Errorf("%w: %d fragments but %d vectors", ErrIndexBuild, len(fragments), len(vectors))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length embedding vector", ErrIndexBuild)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrIndexBuild, i, len(v), dim)
		}
	}
	return &Index{Model: model, Dimension: dim, Fragments: fragments, Vectors: vectors}, nil
}

// Search returns the top-k fragments by inner product over unit vectors,
// descending, ties broken by fragment id for deterministic ordering.
func (ix *Index) Search(query []float32, k int) ([]models.RetrievedFragment, error) {
	if k < 1 {
		k = 1
	}
	if len(query) != ix.Dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", ErrModelMismatch, len(query), ix.Dimension)
	}

	results := make([]models.RetrievedFragment, len(ix.Vectors))
	for i, v := range ix.Vectors {
		results[i] = models.RetrievedFragment{Fragment: ix.Fragments[i], Score: dot(v, query)}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Fragment.ID < results[j].Fragment.ID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Retriever embeds queries and searches a loaded index.
type Retriever struct {
	index    *Index
	embedder embeddings.Embedder
}

// NewRetriever pairs an index with a query embedder. The embedder's
// fingerprint must match the one recorded at build time.
func NewRetriever(ix *Index, embedder embeddings.Embedder, fingerprint string) (*Retriever, error) {
	if ix.Model != fingerprint {
		return nil, fmt.Errorf("%w: index built with %q, query embedder is %q", ErrModelMismatch, ix.Model, fingerprint)
	}
	return &Retriever{index: ix, embedder: embedder}, nil
}

// Retrieve returns the top-k fragments most similar to the query.
// Deterministic for a fixed index and query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedFragment, error) {
	vec, err := embedding.EmbedQuery(ctx, r.embedder, query)
	if err != nil {
		return nil, err
	}
	return r.index.Search(vec, k)
}
