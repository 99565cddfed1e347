package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"conference-assistant/internal/domain"
)

// FileStore mirrors the whole conference table into one JSON file. Every
// mutation rewrites the file in full through a temp file and rename.
type FileStore struct {
	mu   sync.Mutex
	path string
	mem  *MemoryStore
}

// OpenFile loads path if it exists and returns a store backed by it.
func OpenFile(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("repository: file path must not be empty")
	}
	mem := NewMemory()
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("repository: read %s: %w", path, err)
	case len(strings.TrimSpace(string(raw))) > 0:
		table := map[string]domain.Conference{}
		if err := json.Unmarshal(raw, &table); err != nil {
			return nil, fmt.Errorf("repository: decode %s: %w", path, err)
		}
		for id, c := range table {
			if c.ID == "" {
				c.ID = id
			}
			mem.conferences[id] = c
		}
	}
	return &FileStore{path: path, mem: mem}, nil
}

func (f *FileStore) Get(ctx context.Context, id string) (domain.Conference, error) {
	return f.mem.Get(ctx, id)
}

func (f *FileStore) List(ctx context.Context) ([]domain.Conference, error) {
	return f.mem.List(ctx)
}

func (f *FileStore) Put(ctx context.Context, c domain.Conference) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, hadPrev := f.lookup(c.ID)
	if err := f.mem.Put(ctx, c); err != nil {
		return err
	}
	if err := f.flush(); err != nil {
		f.restore(c.ID, prev, hadPrev)
		return fmt.Errorf("repository: Put: %w", err)
	}
	return nil
}

func (f *FileStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, hadPrev := f.lookup(id)
	if err := f.mem.Delete(ctx, id); err != nil {
		return err
	}
	if err := f.flush(); err != nil {
		f.restore(id, prev, hadPrev)
		return fmt.Errorf("repository: Delete: %w", err)
	}
	return nil
}

func (f *FileStore) lookup(id string) (domain.Conference, bool) {
	f.mem.mu.RLock()
	defer f.mem.mu.RUnlock()
	c, ok := f.mem.conferences[id]
	return c, ok
}

func (f *FileStore) restore(id string, prev domain.Conference, hadPrev bool) {
	f.mem.mu.Lock()
	defer f.mem.mu.Unlock()
	if hadPrev {
		f.mem.conferences[id] = prev
		return
	}
	delete(f.mem.conferences, id)
}

func (f *FileStore) flush() error {
	f.mem.mu.RLock()
	raw, err := json.MarshalIndent(f.mem.conferences, "", "  ")
	f.mem.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
