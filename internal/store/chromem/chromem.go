// Package chromem persists fragments and vectors in a local chromem-go
// database as an alternate store backend.
package chromem

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"normativa-rag/internal/config"
	"normativa-rag/internal/models"
)

const compress = false

type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
}

func New(cfg *config.ChromemConfig) (*Store, error) {
	db, err := chromem.NewPersistentDB(cfg.Path, compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem database: %w", err)
	}
	name := cfg.Collection
	if name == "" {
		name = "normativa"
	}
	return &Store{db: db, name: name}, nil
}

func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	// Full-replace semantics: drop any previous collection content.
	if s.db.GetCollection(s.name, nil) != nil {
		if err := s.db.DeleteCollection(s.name); err != nil {
			return fmt.Errorf("clearing chromem collection: %w", err)
		}
	}
	c, err := s.db.GetOrCreateCollection(s.name, nil, nil)
	if err != nil {
		return fmt.Errorf("creating chromem collection: %w", err)
	}
	s.collection = c
	return nil
}

func (s *Store) Upsert(ctx context.Context, fragments []models.Fragment, vectors [][]float32) error {
	if len(fragments) != len(vectors) {
		return fmt.Errorf("%d fragments but %d vectors", len(fragments), len(vectors))
	}
	if s.collection == nil {
		return fmt.Errorf("chromem collection not initialized")
	}
	docs := make([]chromem.Document, len(fragments))
	for i, f := range fragments {
		docs[i] = chromem.Document{
			ID:        f.ID,
			Content:   f.Text,
			Embedding: vectors[i],
			Metadata: map[string]string{
				"document_id":    f.DocumentID,
				"char_start":     strconv.Itoa(f.CharStart),
				"char_end":       strconv.Itoa(f.CharEnd),
				"sequence_index": strconv.Itoa(f.SequenceIndex),
			},
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents to chromem: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]models.RetrievedFragment, error) {
	if s.collection == nil {
		return nil, fmt.Errorf("chromem collection not initialized")
	}
	if topK < 1 {
		topK = 1
	}
	if count := s.collection.Count(); topK > count {
		topK = count
	}
	res, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       topK,
	})
	if err != nil {
		return nil, fmt.Errorf("querying chromem: %w", err)
	}

	results := make([]models.RetrievedFragment, 0, len(res))
	for _, r := range res {
		frag := models.Fragment{ID: r.ID, Text: r.Content, DocumentID: r.Metadata["document_id"]}
		frag.CharStart, _ = strconv.Atoi(r.Metadata["char_start"])
		frag.CharEnd, _ = strconv.Atoi(r.Metadata["char_end"])
		frag.SequenceIndex, _ = strconv.Atoi(r.Metadata["sequence_index"])
		results = append(results, models.RetrievedFragment{Fragment: frag, Score: r.Similarity})
	}
	return results, nil
}
