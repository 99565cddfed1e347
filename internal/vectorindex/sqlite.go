package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"conference-assistant/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL UNIQUE,
	content   TEXT NOT NULL,
	metadata  TEXT NOT NULL,
	embedding TEXT NOT NULL
);`

// SQLiteIndex persists entries in a single SQLite file. Similarity is
// computed in Go over the rows that pass the metadata filter.
type SQLiteIndex struct {
	db       *sql.DB
	embedder Embedder
}

func NewSQLite(ctx context.Context, path string, e Embedder) (*SQLiteIndex, error) {
	if e == nil {
		return nil, errors.New("vectorindex: embedder must not be nil")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("vectorindex: sqlite path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("vectorindex: create sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("vectorindex: open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vectorindex: init sqlite schema: %w", err)
	}
	return &SQLiteIndex{db: db, embedder: e}, nil
}

func (s *SQLiteIndex) Add(ctx context.Context, texts []string, metadata []map[string]string) error {
	entries, err := prepareEntries(ctx, s.embedder, texts, metadata)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorindex: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (id, content, metadata, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("vectorindex: prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		meta, err := json.Marshal(e.metadata)
		if err != nil {
			return fmt.Errorf("vectorindex: marshal metadata: %w", err)
		}
		vec, err := json.Marshal(e.vector)
		if err != nil {
			return fmt.Errorf("vectorindex: marshal embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.id, e.text, string(meta), string(vec)); err != nil {
			return fmt.Errorf("vectorindex: insert chunk: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vectorindex: commit: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Search(ctx context.Context, query string, filter map[string]string, k int) ([]domain.SearchHit, error) {
	q, err := queryVector(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}
	where, args := sqliteWhere(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM chunks`+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []entry
	for rows.Next() {
		var (
			e          entry
			meta, vecs string
		)
		if err := rows.Scan(&e.id, &e.text, &meta, &vecs); err != nil {
			return nil, fmt.Errorf("vectorindex: scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &e.metadata); err != nil {
			return nil, fmt.Errorf("vectorindex: decode metadata: %w", err)
		}
		if err := json.Unmarshal([]byte(vecs), &e.vector); err != nil {
			return nil, fmt.Errorf("vectorindex: decode embedding: %w", err)
		}
		candidates = append(candidates, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorindex: iterate chunks: %w", err)
	}
	return rank(candidates, q, k), nil
}

func (s *SQLiteIndex) Delete(ctx context.Context, filter map[string]string) (int, error) {
	if len(filter) == 0 {
		return 0, ErrEmptyFilter
	}
	where, args := sqliteWhere(filter)
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("vectorindex: delete chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("vectorindex: rows affected: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// sqliteWhere builds a deterministic json_extract filter clause.
func sqliteWhere(filter map[string]string) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conds := make([]string, 0, len(keys))
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		conds = append(conds, "json_extract(metadata, ?) = ?")
		args = append(args, `$."`+strings.ReplaceAll(k, `"`, `\"`)+`"`, filter[k])
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
