// Package rag wires retrieval and answer generation into the
// query-serving operations consumed by the CLI and web collaborators.
package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"normativa-rag/internal/config"
	"normativa-rag/internal/models"
	"normativa-rag/internal/provider"
)

// Retriever maps a query to its top-k supporting fragments. Both the
// local index and the alternate store backends satisfy it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedFragment, error)
}

// Service answers questions against the indexed corpus. Provider
// selection is request-scoped; no provider state survives between calls.
type Service struct {
	retriever Retriever
	cfg       *config.Config
}

func NewService(retriever Retriever, cfg *config.Config) *Service {
	return &Service{retriever: retriever, cfg: cfg}
}

// Ask retrieves context for the query and generates an answer with the
// named provider.
func (s *Service) Ask(ctx context.Context, query, providerName string, k int) (*models.ProviderResponse, error) {
	p, err := provider.New(providerName, s.cfg)
	if err != nil {
		return nil, err
	}
	return s.AskWith(ctx, query, p, k)
}

// AskWith is Ask for an already-constructed provider.
func (s *Service) AskWith(ctx context.Context, query string, p provider.Provider, k int) (*models.ProviderResponse, error) {
	if k < 1 {
		k = 1
	}

	start := time.Now()
	fragments, err := s.retriever.Retrieve(ctx, query, k)
	retrievalLatency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	log.Debug().
		Str("provider", p.Name()).
		Int("fragments", len(fragments)).
		Dur("retrieval", retrievalLatency).
		Msg("Context retrieved")

	resp, err := provider.Answer(ctx, p, query, fragments, provider.OptionsFromConfig(s.cfg.Generation))
	if err != nil {
		return nil, err
	}
	resp.RetrievalLatency = retrievalLatency
	return resp, nil
}

// ComparisonSide is one provider's outcome in a comparison. Exactly one
// of Response or Err is set.
type ComparisonSide struct {
	Provider string
	Response *models.ProviderResponse
	Err      error
}

// Compare runs two providers concurrently over the same query and
// retrieved fragments. Each leg runs under its own timeout and writes
// only its own slot; one leg's failure never drops the other's result.
func (s *Service) Compare(ctx context.Context, query, nameA, nameB string, k int) (ComparisonSide, ComparisonSide, error) {
	sideA := ComparisonSide{Provider: nameA}
	sideB := ComparisonSide{Provider: nameB}

	provA, err := provider.New(nameA, s.cfg)
	if err != nil {
		return sideA, sideB, err
	}
	provB, err := provider.New(nameB, s.cfg)
	if err != nil {
		return sideA, sideB, err
	}

	if k < 1 {
		k = 1
	}
	start := time.Now()
	fragments, err := s.retriever.Retrieve(ctx, query, k)
	retrievalLatency := time.Since(start)
	if err != nil {
		return sideA, sideB, fmt.Errorf("retrieving context: %w", err)
	}

	opts := provider.OptionsFromConfig(s.cfg.Generation)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sideA.Response, sideA.Err = provider.Answer(ctx, provA, query, fragments, opts)
	}()
	go func() {
		defer wg.Done()
		sideB.Response, sideB.Err = provider.Answer(ctx, provB, query, fragments, opts)
	}()
	wg.Wait()

	if sideA.Response != nil {
		sideA.Response.RetrievalLatency = retrievalLatency
	}
	if sideB.Response != nil {
		sideB.Response.RetrievalLatency = retrievalLatency
	}
	return sideA, sideB, nil
}
