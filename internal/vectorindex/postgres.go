package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"conference-assistant/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	seq       BIGSERIAL PRIMARY KEY,
	id        TEXT NOT NULL UNIQUE,
	content   TEXT NOT NULL,
	metadata  JSONB NOT NULL,
	embedding FLOAT8[] NOT NULL
);
CREATE INDEX IF NOT EXISTS chunks_metadata_idx ON chunks USING GIN (metadata);`

// PostgresIndex stores entries in Postgres with jsonb metadata and a float8[]
// embedding column.
type PostgresIndex struct {
	db       *sql.DB
	embedder Embedder
}

func NewPostgres(ctx context.Context, dsn string, e Embedder) (*PostgresIndex, error) {
	if e == nil {
		return nil, errors.New("vectorindex: embedder must not be nil")
	}
	dsn = postgresDSN(dsn)
	if dsn == "" {
		return nil, errors.New("vectorindex: postgres dsn must not be empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vectorindex: ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vectorindex: init postgres schema: %w", err)
	}
	return &PostgresIndex{db: db, embedder: e}, nil
}

// postgresDSN disables TLS unless the DSN says otherwise.
func postgresDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || strings.Contains(dsn, "sslmode=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&sslmode=disable"
	}
	if strings.Contains(dsn, "://") {
		return dsn + "?sslmode=disable"
	}
	return dsn + " sslmode=disable"
}

func (p *PostgresIndex) Add(ctx context.Context, texts []string, metadata []map[string]string) error {
	entries, err := prepareEntries(ctx, p.embedder, texts, metadata)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorindex: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		meta, err := json.Marshal(e.metadata)
		if err != nil {
			return fmt.Errorf("vectorindex: marshal metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, content, metadata, embedding) VALUES ($1, $2, $3::jsonb, $4::float8[])`,
			e.id, e.text, string(meta), pq.Float64Array(e.vector),
		)
		if err != nil {
			return fmt.Errorf("vectorindex: insert chunk: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vectorindex: commit: %w", err)
	}
	return nil
}

func (p *PostgresIndex) Search(ctx context.Context, query string, filter map[string]string, k int) ([]domain.SearchHit, error) {
	q, err := queryVector(ctx, p.embedder, query)
	if err != nil {
		return nil, err
	}
	containment, err := filterJSON(filter)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, content, metadata, embedding FROM chunks WHERE metadata @> $1::jsonb ORDER BY seq`,
		containment,
	)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []entry
	for rows.Next() {
		var (
			e    entry
			meta []byte
			vec  pq.Float64Array
		)
		if err := rows.Scan(&e.id, &e.text, &meta, &vec); err != nil {
			return nil, fmt.Errorf("vectorindex: scan chunk: %w", err)
		}
		if err := json.Unmarshal(meta, &e.metadata); err != nil {
			return nil, fmt.Errorf("vectorindex: decode metadata: %w", err)
		}
		e.vector = []float64(vec)
		candidates = append(candidates, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorindex: iterate chunks: %w", err)
	}
	return rank(candidates, q, k), nil
}

func (p *PostgresIndex) Delete(ctx context.Context, filter map[string]string) (int, error) {
	if len(filter) == 0 {
		return 0, ErrEmptyFilter
	}
	containment, err := filterJSON(filter)
	if err != nil {
		return 0, err
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM chunks WHERE metadata @> $1::jsonb`, containment)
	if err != nil {
		return 0, fmt.Errorf("vectorindex: delete chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("vectorindex: rows affected: %w", err)
	}
	return int(n), nil
}

func (p *PostgresIndex) Close() error {
	return p.db.Close()
}

func filterJSON(filter map[string]string) (string, error) {
	if filter == nil {
		filter = map[string]string{}
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("vectorindex: marshal filter: %w", err)
	}
	return string(raw), nil
}
