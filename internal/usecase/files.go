package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// cleanFilename reduces a client supplied name to a plain base name.
func cleanFilename(name string) (string, bool) {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	base := filepath.Base(name)
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", false
	}
	return base, true
}

// writeFile streams r into path, removing the partial file on failure.
func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("usecase: create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("usecase: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("usecase: close %s: %w", path, err)
	}
	return nil
}

// removePrefixed deletes regular files in dir whose names start with prefix.
// Failures are logged and skipped. It returns how many files were removed.
func removePrefixed(ctx context.Context, dir, prefix string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger(ctx).Warn("failed to list directory", "dir", dir, "err", err)
		}
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			logger(ctx).Warn("failed to remove file", "path", path, "err", err)
			continue
		}
		removed++
	}
	return removed
}
