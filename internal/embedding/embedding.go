package embedding

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"normativa-rag/internal/config"
	"normativa-rag/internal/models"
)

// NewEmbedder builds the configured embedding backend. The returned
// embedder must match the fingerprint recorded with the index it queries.
func NewEmbedder(cfg *config.EmbeddingConfig) (*embeddings.EmbedderImpl, error) {
	switch cfg.Provider {
	case "openai":
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(os.Getenv(cfg.APIKeyEnv)),
			openai.WithModel(cfg.Model),
			openai.WithEmbeddingModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing openai embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// Fingerprint identifies the embedding model version an index was built
// with. Query-time embedders must present the same fingerprint.
func Fingerprint(cfg *config.EmbeddingConfig) string {
	return cfg.Provider + "/" + cfg.Model
}

// EmbedFragments embeds every fragment text and L2-normalizes the vectors
// so inner product equals cosine similarity.
func EmbedFragments(ctx context.Context, embedder embeddings.Embedder, fragments []models.Fragment) ([][]float32, error) {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d fragments: %w", len(fragments), err)
	}
	if len(vectors) != len(fragments) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d fragments", len(vectors), len(fragments))
	}
	for _, v := range vectors {
		Normalize(v)
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text with normalization.
func EmbedQuery(ctx context.Context, embedder embeddings.Embedder, query string) ([]float32, error) {
	v, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	Normalize(v)
	return v, nil
}

// Normalize scales a vector to unit length in place.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
