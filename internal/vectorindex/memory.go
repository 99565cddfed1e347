package vectorindex

import (
	"context"
	"errors"
	"sync"

	"conference-assistant/internal/domain"
)

// MemoryIndex keeps every entry in process memory.
type MemoryIndex struct {
	mu       sync.RWMutex
	embedder Embedder
	entries  []entry
}

func NewMemory(e Embedder) (*MemoryIndex, error) {
	if e == nil {
		return nil, errors.New("vectorindex: embedder must not be nil")
	}
	return &MemoryIndex{embedder: e}, nil
}

func (m *MemoryIndex) Add(ctx context.Context, texts []string, metadata []map[string]string) error {
	entries, err := prepareEntries(ctx, m.embedder, texts, metadata)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, query string, filter map[string]string, k int) ([]domain.SearchHit, error) {
	q, err := queryVector(ctx, m.embedder, query)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	candidates := make([]entry, 0)
	for _, e := range m.entries {
		if matches(e.metadata, filter) {
			candidates = append(candidates, e)
		}
	}
	m.mu.RUnlock()
	return rank(candidates, q, k), nil
}

func (m *MemoryIndex) Delete(_ context.Context, filter map[string]string) (int, error) {
	if len(filter) == 0 {
		return 0, ErrEmptyFilter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	removed := 0
	for _, e := range m.entries {
		if matches(e.metadata, filter) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(m.entries); i++ {
		m.entries[i] = entry{}
	}
	m.entries = kept
	return removed, nil
}

func (m *MemoryIndex) Close() error { return nil }
