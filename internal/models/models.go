package models

import "time"

// Document is one extracted source document. It is immutable once
// extracted; re-running ingestion supersedes it.
type Document struct {
	ID     string
	Text   string
	Format string
}

// Fragment is a bounded span of one document, the atomic unit of
// retrieval. CharStart/CharEnd are rune-offsets into the source text and
// fragments of a document are contiguous except for the configured overlap.
type Fragment struct {
	ID            string
	DocumentID    string
	Text          string
	CharStart     int
	CharEnd       int
	SequenceIndex int
}

// RetrievedFragment pairs a fragment with its similarity score.
type RetrievedFragment struct {
	Fragment Fragment
	Score    float32
}

// ProviderResponse is the result of one answer generation call.
type ProviderResponse struct {
	Provider          string
	Answer            string
	Citations         []string
	CitationCompliant bool
	Disabled          bool
	RetrievalLatency  time.Duration
	GenerationLatency time.Duration
	TokensIn          int
	TokensOut         int
	CostUSD           float64
}
