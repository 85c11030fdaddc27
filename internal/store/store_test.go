package store

import (
	"context"
	"testing"

	"normativa-rag/internal/config"
	"normativa-rag/internal/models"
)

func TestNewFactory(t *testing.T) {
	if st, err := New(&config.StoreConfig{Type: "local"}); err != nil || st != nil {
		t.Errorf("local store must be nil without error, got %v, %v", st, err)
	}
	if st, err := New(&config.StoreConfig{}); err != nil || st != nil {
		t.Errorf("empty type defaults to local, got %v, %v", st, err)
	}

	for _, typ := range []string{"chromem", "qdrant", "postgres"} {
		if _, err := New(&config.StoreConfig{Type: typ}); err == nil {
			t.Errorf("store type %q without its config section must error", typ)
		}
	}
	if _, err := New(&config.StoreConfig{Type: "redis"}); err == nil {
		t.Error("unknown store type must be rejected")
	}

	st, err := New(&config.StoreConfig{
		Type:   "qdrant",
		Qdrant: &config.QdrantConfig{URL: "http://localhost:6333"},
	})
	if err != nil || st == nil {
		t.Errorf("qdrant store failed to construct: %v", err)
	}
}

type fixedStore struct {
	results []models.RetrievedFragment
	lastK   int
}

func (f *fixedStore) Init(ctx context.Context, dimension int) error { return nil }
func (f *fixedStore) Upsert(ctx context.Context, fragments []models.Fragment, vectors [][]float32) error {
	return nil
}
func (f *fixedStore) Search(ctx context.Context, vector []float32, topK int) ([]models.RetrievedFragment, error) {
	f.lastK = topK
	return f.results, nil
}

type unitEmbedder struct{}

func (unitEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (unitEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func TestRetrieverDelegatesToStore(t *testing.T) {
	backend := &fixedStore{results: []models.RetrievedFragment{
		{Fragment: models.Fragment{ID: "doc.pdf:0"}, Score: 0.9},
	}}
	r := NewRetriever(backend, unitEmbedder{})

	results, err := r.Retrieve(context.Background(), "consulta", 3)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if backend.lastK != 3 {
		t.Errorf("store asked for topK=%d, want 3", backend.lastK)
	}
	if len(results) != 1 || results[0].Fragment.ID != "doc.pdf:0" {
		t.Errorf("unexpected results: %v", results)
	}
}
