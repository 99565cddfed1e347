// Package vectorindex stores text chunks with metadata and embeddings and
// retrieves them by similarity, scoped by exact-match metadata filters.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"conference-assistant/internal/domain"
	"conference-assistant/internal/embedding"
)

var (
	// ErrEmptyFilter guards Delete against wiping the whole index.
	ErrEmptyFilter = errors.New("vectorindex: filter must not be empty")
	// ErrLengthMismatch is returned when texts and metadata differ in length.
	ErrLengthMismatch = errors.New("vectorindex: texts and metadata length mismatch")
)

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type entry struct {
	id       string
	text     string
	metadata map[string]string
	vector   []float64
}

var newID = func() string {
	return uuid.NewString()
}

func prepareEntries(ctx context.Context, e Embedder, texts []string, metadata []map[string]string) ([]entry, error) {
	if len(texts) != len(metadata) {
		return nil, fmt.Errorf("%w: %d texts, %d metadata", ErrLengthMismatch, len(texts), len(metadata))
	}
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("vectorindex: embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	out := make([]entry, len(texts))
	for i := range texts {
		meta := make(map[string]string, len(metadata[i]))
		for k, v := range metadata[i] {
			meta[k] = v
		}
		out[i] = entry{id: newID(), text: texts[i], metadata: meta, vector: vectors[i]}
	}
	return out, nil
}

func queryVector(ctx context.Context, e Embedder, query string) ([]float64, error) {
	if query == "" {
		return nil, nil
	}
	vecs, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, errors.New("vectorindex: embedder returned no query vector")
	}
	return vecs[0], nil
}

func matches(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

// rank orders candidates, already in insertion order, by similarity to q.
// A nil q keeps insertion order. k <= 0 returns every candidate.
func rank(candidates []entry, q []float64, k int) []domain.SearchHit {
	hits := make([]domain.SearchHit, len(candidates))
	for i, c := range candidates {
		hits[i] = domain.SearchHit{
			Chunk: domain.Chunk{ID: c.id, Text: c.text, Metadata: c.metadata},
		}
		if q != nil {
			hits[i].Score = embedding.Cosine(q, c.vector)
		}
	}
	if q != nil {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	}
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits
}
