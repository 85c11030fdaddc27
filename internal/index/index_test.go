package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"normativa-rag/internal/embedding"
	"normativa-rag/internal/models"
)

// fakeEmbedder maps text deterministically onto a small unit vector so
// identical texts always land on identical embeddings.
type fakeEmbedder struct{}

const fakeDim = 16

func (fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = embedText(text)
	}
	return out, nil
}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embedText(text), nil
}

func embedText(text string) []float32 {
	vec := make([]float32, fakeDim)
	for i, r := range text {
		vec[(int(r)+i)%fakeDim]++
	}
	embedding.Normalize(vec)
	return vec
}

func frag(id, text string) models.Fragment {
	return models.Fragment{ID: id, DocumentID: "doc.txt", Text: text}
}

func TestBuildValidation(t *testing.T) {
	if _, err := Build("fake/test", nil, nil); !errors.Is(err, ErrIndexBuild) {
		t.Errorf("empty build: expected ErrIndexBuild, got %v", err)
	}

	frags := []models.Fragment{frag("doc.txt:0", "a"), frag("doc.txt:1", "b")}
	if _, err := Build("fake/test", frags, [][]float32{{1, 0}}); !errors.Is(err, ErrIndexBuild) {
		t.Errorf("count mismatch: expected ErrIndexBuild, got %v", err)
	}
	if _, err := Build("fake/test", frags, [][]float32{{1, 0}, {1, 0, 0}}); !errors.Is(err, ErrIndexBuild) {
		t.Errorf("dimension mismatch: expected ErrIndexBuild, got %v", err)
	}
	if _, err := Build("fake/test", frags[:1], [][]float32{{}}); !errors.Is(err, ErrIndexBuild) {
		t.Errorf("zero-length vector: expected ErrIndexBuild, got %v", err)
	}
}

func TestSearchOrderingAndK(t *testing.T) {
	frags := []models.Fragment{
		frag("doc.txt:0", "exact"),
		frag("doc.txt:1", "orthogonal"),
		frag("doc.txt:2", "close"),
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.6, 0.8, 0},
	}
	ix, err := Build("fake/test", frags, vectors)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	results, err := ix.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Fragment.ID != "doc.txt:0" || results[1].Fragment.ID != "doc.txt:2" {
		t.Errorf("wrong ranking: %s, %s", results[0].Fragment.ID, results[1].Fragment.ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results are not sorted by descending score")
	}

	// k beyond the corpus caps at the corpus size.
	results, err = ix.Search([]float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected all 3 results for oversized k, got %d", len(results))
	}
}

func TestSearchTieBreak(t *testing.T) {
	frags := []models.Fragment{
		frag("doc.txt:1", "segundo"),
		frag("doc.txt:0", "primero"),
	}
	vectors := [][]float32{
		{0, 1},
		{0, 1},
	}
	ix, err := Build("fake/test", frags, vectors)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	results, err := ix.Search([]float32{0, 1}, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if results[0].Fragment.ID != "doc.txt:0" {
		t.Errorf("equal scores must order by fragment id, got %s first", results[0].Fragment.ID)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix, err := Build("fake/test", []models.Fragment{frag("doc.txt:0", "a")}, [][]float32{{1, 0, 0}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := ix.Search([]float32{1, 0}, 1); !errors.Is(err, ErrModelMismatch) {
		t.Errorf("expected ErrModelMismatch, got %v", err)
	}
}

func TestSelfRetrieval(t *testing.T) {
	texts := []string{
		"La nota minima de aprobacion en pregrado es 4.0.",
		"El arancel anual se fija por decreto de rectoria.",
		"La matricula se realiza en linea durante enero.",
		"El titulo profesional requiere aprobar el examen de grado.",
	}
	fragments := make([]models.Fragment, len(texts))
	for i, text := range texts {
		fragments[i] = models.Fragment{ID: fmt.Sprintf("doc.txt:%d", i), DocumentID: "doc.txt", Text: text, SequenceIndex: i}
	}

	ctx := context.Background()
	embedder := fakeEmbedder{}
	vectors, err := embedding.EmbedFragments(ctx, embedder, fragments)
	if err != nil {
		t.Fatalf("embedding failed: %v", err)
	}
	ix, err := Build("fake/test", fragments, vectors)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	retriever, err := NewRetriever(ix, embedder, "fake/test")
	if err != nil {
		t.Fatalf("retriever failed: %v", err)
	}

	for _, f := range fragments {
		results, err := retriever.Retrieve(ctx, f.Text, 2)
		if err != nil {
			t.Fatalf("retrieve failed: %v", err)
		}
		if results[0].Fragment.ID != f.ID {
			t.Errorf("querying with %q did not rank it first, got %q", f.ID, results[0].Fragment.ID)
		}
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	fragments := []models.Fragment{
		frag("a.txt:0", "requisitos de matricula"),
		frag("b.txt:0", "calendario academico"),
		frag("c.txt:0", "becas y beneficios"),
	}
	ctx := context.Background()
	embedder := fakeEmbedder{}
	vectors, err := embedding.EmbedFragments(ctx, embedder, fragments)
	if err != nil {
		t.Fatalf("embedding failed: %v", err)
	}
	ix, err := Build("fake/test", fragments, vectors)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	retriever, err := NewRetriever(ix, embedder, "fake/test")
	if err != nil {
		t.Fatalf("retriever failed: %v", err)
	}

	first, err := retriever.Retrieve(ctx, "como hago la matricula", 3)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	second, err := retriever.Retrieve(ctx, "como hago la matricula", 3)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical queries returned different rankings")
	}
}

func TestRetrieverFingerprintMismatch(t *testing.T) {
	ix, err := Build("openai/text-embedding-3-small", []models.Fragment{frag("doc.txt:0", "a")}, [][]float32{{1}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := NewRetriever(ix, fakeEmbedder{}, "ollama/nomic-embed-text"); !errors.Is(err, ErrModelMismatch) {
		t.Errorf("expected ErrModelMismatch, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fragments := []models.Fragment{
		{ID: "reglamento.pdf:0", DocumentID: "reglamento.pdf", Text: "Texto con, comas y\nsaltos de linea.", CharStart: 0, CharEnd: 35, SequenceIndex: 0},
		{ID: "reglamento.pdf:1", DocumentID: "reglamento.pdf", Text: "Segundo fragmento.", CharStart: 20, CharEnd: 38, SequenceIndex: 1},
	}
	vectors := [][]float32{{0.6, 0.8}, {0, 1}}

	ix, err := Build("ollama/nomic-embed-text", fragments, vectors)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := ix.Save(dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// No temp files may survive activation.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading index dir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("stale temp file left behind: %s", e.Name())
		}
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Model != ix.Model || loaded.Dimension != ix.Dimension {
		t.Errorf("metadata mismatch after reload: %q/%d", loaded.Model, loaded.Dimension)
	}
	if !reflect.DeepEqual(loaded.Fragments, ix.Fragments) {
		t.Error("fragments changed across save/load")
	}
	if !reflect.DeepEqual(loaded.Vectors, ix.Vectors) {
		t.Error("vectors changed across save/load")
	}
}

func TestLoadMissingIndex(t *testing.T) {
	if _, err := Load(t.TempDir()); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}
