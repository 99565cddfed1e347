package vectorindex

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"conference-assistant/internal/domain"
	"conference-assistant/internal/embedding"
)

type index interface {
	Add(ctx context.Context, texts []string, metadata []map[string]string) error
	Search(ctx context.Context, query string, filter map[string]string, k int) ([]domain.SearchHit, error)
	Delete(ctx context.Context, filter map[string]string) (int, error)
}

func implementations(t *testing.T) map[string]index {
	t.Helper()
	mem, err := NewMemory(embedding.NewHashing(128))
	require.NoError(t, err)

	lite, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "index", "chunks.db"), embedding.NewHashing(128))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })

	return map[string]index{
		"memory": mem,
		"sqlite": lite,
	}
}

func texts(hits []domain.SearchHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk.Text
	}
	return out
}

func seed(t *testing.T, idx index) {
	t.Helper()
	err := idx.Add(context.Background(),
		[]string{
			"Math grade is an A this semester.",
			"Reading comprehension needs practice.",
			"Science project won first place.",
			"Lunch menu for next week.",
		},
		[]map[string]string{
			{"document_id": "doc-1", "chunk_index": "0"},
			{"document_id": "doc-1", "chunk_index": "1"},
			{"document_id": "doc-1", "chunk_index": "2"},
			{"document_id": "doc-2", "chunk_index": "0"},
		},
	)
	require.NoError(t, err)
}

func TestIndex_SearchIsScopedByFilter(t *testing.T) {
	for name, idx := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, idx)
			hits, err := idx.Search(context.Background(), "math grade", map[string]string{"document_id": "doc-1"}, 5)
			require.NoError(t, err)
			require.Len(t, hits, 3)
			require.Equal(t, "Math grade is an A this semester.", hits[0].Chunk.Text)
			for _, h := range hits {
				require.Equal(t, "doc-1", h.Chunk.Metadata["document_id"])
			}

			none, err := idx.Search(context.Background(), "math grade", map[string]string{"document_id": "doc-9"}, 5)
			require.NoError(t, err)
			require.Empty(t, none)
		})
	}
}

func TestIndex_TopK(t *testing.T) {
	for name, idx := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, idx)
			hits, err := idx.Search(context.Background(), "science project", map[string]string{"document_id": "doc-1"}, 1)
			require.NoError(t, err)
			require.Equal(t, []string{"Science project won first place."}, texts(hits))
		})
	}
}

func TestIndex_EmptyQueryReturnsAllInInsertionOrder(t *testing.T) {
	for name, idx := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, idx)
			hits, err := idx.Search(context.Background(), "", map[string]string{"document_id": "doc-1"}, 0)
			require.NoError(t, err)
			require.Equal(t, []string{
				"Math grade is an A this semester.",
				"Reading comprehension needs practice.",
				"Science project won first place.",
			}, texts(hits))
		})
	}
}

func TestIndex_Delete(t *testing.T) {
	for name, idx := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, idx)
			n, err := idx.Delete(context.Background(), map[string]string{"document_id": "doc-1"})
			require.NoError(t, err)
			require.Equal(t, 3, n)

			hits, err := idx.Search(context.Background(), "", map[string]string{"document_id": "doc-1"}, 0)
			require.NoError(t, err)
			require.Empty(t, hits)

			rest, err := idx.Search(context.Background(), "", nil, 0)
			require.NoError(t, err)
			require.Equal(t, []string{"Lunch menu for next week."}, texts(rest))

			n, err = idx.Delete(context.Background(), map[string]string{"document_id": "doc-1"})
			require.NoError(t, err)
			require.Zero(t, n)

			_, err = idx.Delete(context.Background(), nil)
			require.ErrorIs(t, err, ErrEmptyFilter)
		})
	}
}

func TestIndex_AddLengthMismatch(t *testing.T) {
	for name, idx := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			err := idx.Add(context.Background(), []string{"a", "b"}, []map[string]string{{"document_id": "x"}})
			require.ErrorIs(t, err, ErrLengthMismatch)
		})
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float64, error) {
	return nil, errors.New("embedding service unavailable")
}

func TestMemory_EmbedErrorPropagates(t *testing.T) {
	idx, err := NewMemory(failingEmbedder{})
	require.NoError(t, err)
	err = idx.Add(context.Background(), []string{"a"}, []map[string]string{{"document_id": "x"}})
	require.ErrorContains(t, err, "embedding service unavailable")

	_, err = idx.Search(context.Background(), "q", nil, 5)
	require.Error(t, err)
}

func TestNewMemory_NilEmbedder(t *testing.T) {
	_, err := NewMemory(nil)
	require.Error(t, err)
}

func TestSQLiteWhere(t *testing.T) {
	where, args := sqliteWhere(map[string]string{"document_id": "d", "chunk_index": "1"})
	require.Equal(t, " WHERE json_extract(metadata, ?) = ? AND json_extract(metadata, ?) = ?", where)
	require.Equal(t, []any{`$."chunk_index"`, "1", `$."document_id"`, "d"}, args)

	where, args = sqliteWhere(nil)
	require.Empty(t, where)
	require.Nil(t, args)
}

func TestPostgresDSN(t *testing.T) {
	cases := map[string]string{
		"":                                        "",
		"postgres://u:p@db/app":                   "postgres://u:p@db/app?sslmode=disable",
		"postgres://u:p@db/app?connect_timeout=5": "postgres://u:p@db/app?connect_timeout=5&sslmode=disable",
		"postgres://u:p@db/app?sslmode=require":   "postgres://u:p@db/app?sslmode=require",
		"host=db user=u dbname=app":               "host=db user=u dbname=app sslmode=disable",
	}
	for in, want := range cases {
		require.Equal(t, want, postgresDSN(in), in)
	}
}

func TestFilterJSON(t *testing.T) {
	raw, err := filterJSON(map[string]string{"conference_id": "c1"})
	require.NoError(t, err)
	require.JSONEq(t, `{"conference_id":"c1"}`, raw)

	raw, err = filterJSON(nil)
	require.NoError(t, err)
	require.Equal(t, `{}`, raw)
}
