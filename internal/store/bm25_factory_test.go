package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBM25FactoryDefaultsToSQLite(t *testing.T) {
	dir := t.TempDir()

	idx, err := NewBM25Index(dir, DefaultBM25Config(), "")
	require.NoError(t, err)
	require.NoError(t, idx.Index(context.Background(), []*Document{{ID: 1, Content: "alpha"}}))
	require.NoError(t, idx.Close())

	assert.Equal(t, BM25BackendSQLite, DetectBM25Backend(dir))
}

func TestBM25FactoryBleve(t *testing.T) {
	dir := t.TempDir()

	idx, err := NewBM25Index(dir, DefaultBM25Config(), "bleve")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	assert.Equal(t, BM25BackendBleve, DetectBM25Backend(dir))
}

func TestBM25FactoryUnknownBackend(t *testing.T) {
	_, err := NewBM25Index(t.TempDir(), DefaultBM25Config(), "elasticsearch")
	assert.Error(t, err)
}

func TestDetectBM25BackendEmpty(t *testing.T) {
	assert.Equal(t, BM25Backend(""), DetectBM25Backend(t.TempDir()))
}
