package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryBM25(t *testing.T) *SQLiteBM25Index {
	t.Helper()
	idx, err := NewSQLiteBM25Index("", DefaultBM25Config())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSQLiteBM25IndexAndSearch(t *testing.T) {
	idx := newMemoryBM25(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: 1, Content: "func connectDatabase opens the postgres connection pool"},
		{ID: 2, Content: "render the navigation sidebar component"},
	}))

	results, err := idx.Search(ctx, "database connection", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(1), results[0].DocID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSQLiteBM25CamelCaseQuery(t *testing.T) {
	idx := newMemoryBM25(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: 10, Content: "def get_user_name(user_id): return lookup(user_id)"},
	}))

	// camelCase in the query matches snake_case in the document because
	// both split into the same lowercase tokens.
	results, err := idx.Search(ctx, "getUserName", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(10), results[0].DocID)
}

func TestSQLiteBM25Reindex(t *testing.T) {
	idx := newMemoryBM25(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{{ID: 1, Content: "alpha topic"}}))
	require.NoError(t, idx.Index(ctx, []*Document{{ID: 1, Content: "beta topic"}}))

	assert.Equal(t, 1, idx.Stats().DocumentCount)

	results, err := idx.Search(ctx, "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "beta", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSQLiteBM25Delete(t *testing.T) {
	idx := newMemoryBM25(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: 1, Content: "alpha"},
		{ID: 2, Content: "beta"},
	}))
	require.NoError(t, idx.Delete(ctx, []uint64{1}))

	ids, err := idx.AllIDs()
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, ids)
}

func TestSQLiteBM25EmptyAndStopWordQuery(t *testing.T) {
	idx := newMemoryBM25(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{{ID: 1, Content: "alpha"}}))

	results, err := idx.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Every token is a stop word.
	results, err = idx.Search(ctx, "func return if", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteBM25PersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bm25.db")
	ctx := context.Background()

	idx, err := NewSQLiteBM25Index(path, DefaultBM25Config())
	require.NoError(t, err)
	require.NoError(t, idx.Index(ctx, []*Document{{ID: 5, Content: "persistent lexical entry"}}))
	require.NoError(t, idx.Close())

	reopened, err := NewSQLiteBM25Index(path, DefaultBM25Config())
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.Search(ctx, "persistent", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(5), results[0].DocID)
}
