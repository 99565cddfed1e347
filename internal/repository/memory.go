// Package repository persists conference records. Get and Delete return
// domain.ErrNotFound for unknown ids.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"conference-assistant/internal/domain"
)

// MemoryStore keeps conferences in a map guarded by a RWMutex. Records are
// copied on the way in and out so callers never share segment slices.
type MemoryStore struct {
	mu          sync.RWMutex
	conferences map[string]domain.Conference
}

func NewMemory() *MemoryStore {
	return &MemoryStore{conferences: make(map[string]domain.Conference)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (domain.Conference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conferences[id]
	if !ok {
		return domain.Conference{}, fmt.Errorf("repository: Get %q: %w", id, domain.ErrNotFound)
	}
	return c.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, c domain.Conference) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("repository: Put: conference id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conferences[c.ID] = c.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conferences[id]; !ok {
		return fmt.Errorf("repository: Delete %q: %w", id, domain.ErrNotFound)
	}
	delete(m.conferences, id)
	return nil
}

// List returns every conference ordered by start time, then id.
func (m *MemoryStore) List(_ context.Context) ([]domain.Conference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Conference, 0, len(m.conferences))
	for _, c := range m.conferences {
		out = append(out, c.Clone())
	}
	sortConferences(out)
	return out, nil
}

func sortConferences(cs []domain.Conference) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].StartTime.Equal(cs[j].StartTime) {
			return cs[i].StartTime.Before(cs[j].StartTime)
		}
		return cs[i].ID < cs[j].ID
	})
}
