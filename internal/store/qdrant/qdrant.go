// Package qdrant is a minimal REST client for a remote Qdrant collection
// used as an alternate store backend.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"normativa-rag/internal/config"
	"normativa-rag/internal/models"
)

type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

func New(cfg *config.QdrantConfig) *Store {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "normativa_fragments"
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     os.Getenv(cfg.APIKeyEnv),
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	// Recreate the collection so a rebuild fully replaces old points.
	req, _ := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	s.setHeaders(req)
	if resp, err := s.client.Do(req); err == nil {
		resp.Body.Close()
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

func (s *Store) Upsert(ctx context.Context, fragments []models.Fragment, vectors [][]float32) error {
	if len(fragments) != len(vectors) {
		return fmt.Errorf("%d fragments but %d vectors", len(fragments), len(vectors))
	}
	// Qdrant point ids must be ints or uuids; the real fragment id rides
	// in the payload.
	points := make([]map[string]any, len(fragments))
	for i, f := range fragments {
		points[i] = map[string]any{
			"id":     i,
			"vector": vectors[i],
			"payload": map[string]any{
				"fragment_id":    f.ID,
				"document_id":    f.DocumentID,
				"text":           f.Text,
				"char_start":     f.CharStart,
				"char_end":       f.CharEnd,
				"sequence_index": f.SequenceIndex,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body)
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]models.RetrievedFragment, error) {
	if topK < 1 {
		topK = 1
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}

	results := make([]models.RetrievedFragment, 0, len(resp.Result))
	for _, r := range resp.Result {
		frag := models.Fragment{}
		if v, ok := r.Payload["fragment_id"].(string); ok {
			frag.ID = v
		}
		if v, ok := r.Payload["document_id"].(string); ok {
			frag.DocumentID = v
		}
		if v, ok := r.Payload["text"].(string); ok {
			frag.Text = v
		}
		if v, ok := r.Payload["char_start"].(float64); ok {
			frag.CharStart = int(v)
		}
		if v, ok := r.Payload["char_end"].(float64); ok {
			frag.CharEnd = int(v)
		}
		if v, ok := r.Payload["sequence_index"].(float64); ok {
			frag.SequenceIndex = int(v)
		}
		results = append(results, models.RetrievedFragment{Fragment: frag, Score: r.Score})
	}
	return results, nil
}

func (s *Store) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Store) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant PUT %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant POST %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
