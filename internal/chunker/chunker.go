// Package chunker splits extracted documents into overlapping fragments.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"normativa-rag/internal/models"
)

// ErrEmptyDocument is returned for documents whose extracted text is empty
// or whitespace-only. Callers skip such documents instead of aborting.
var ErrEmptyDocument = errors.New("document has no extractable text")

// Chunker produces fixed-size fragments with a configured overlap.
// Fragments never split mid-sentence when a boundary exists within
// tolerance of the size limit; otherwise they hard-split at the limit.
type Chunker struct {
	size      int
	overlap   int
	tolerance int
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = models.DefaultChunkSize
	}
	if size < models.MinChunkSize {
		size = models.MinChunkSize
	}
	if size > models.MaxChunkSize {
		size = models.MaxChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap, tolerance: size / 5}
}

// Chunk splits a document into fragments. Offsets are rune-based and
// contiguous: fragment n+1 starts exactly overlap runes before fragment n
// ends, so concatenating the non-overlapping suffixes reconstructs the
// source text.
func (c *Chunker) Chunk(doc models.Document) ([]models.Fragment, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("%s: %w", doc.ID, ErrEmptyDocument)
	}

	runes := []rune(doc.Text)
	var fragments []models.Fragment
	start := 0
	seq := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.snapToBoundary(runes, start, end)
		}

		fragments = append(fragments, models.Fragment{
			ID:            fmt.Sprintf("%s:%d", doc.ID, seq),
			DocumentID:    doc.ID,
			Text:          string(runes[start:end]),
			CharStart:     start,
			CharEnd:       end,
			SequenceIndex: seq,
		})

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
		seq++
	}
	return fragments, nil
}

// snapToBoundary moves the cut point back to the nearest sentence or
// paragraph boundary, but no further than the tolerance window.
func (c *Chunker) snapToBoundary(runes []rune, start, end int) int {
	limit := end - c.tolerance
	if limit < start+1 {
		limit = start + 1
	}
	for i := end - 1; i >= limit; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
		if (runes[i] == '.' || runes[i] == '!' || runes[i] == '?') && i+1 < end && isSpace(runes[i+1]) {
			return i + 2
		}
	}
	return end
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
