package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/store"
)

func newTestEngine(t *testing.T, cloud *fakeStore, bm25 store.BM25Index) *Engine {
	t.Helper()
	return NewEngine(newTestRetriever(t, cloud, bm25), &NoOpReranker{}, 10, nil)
}

func TestEngineSearchCodeQuery(t *testing.T) {
	code := docPoint(1, "src/app.py", "", "def greet():\n    return \"hi\"", 10)
	code.Payload["content_type"] = "code"
	code.Payload["language"] = "python"
	code.Payload["name"] = "greet"
	doc := docPoint(2, "docs/a.md", "Greetings", "the greet function says hi", 1)
	cloud := newFakeStore(code, doc)
	cloud.searchResults = []*store.ScoredPoint{
		{Point: *doc, Score: 0.9},
		{Point: *code, Score: 0.8},
	}

	e := newTestEngine(t, cloud, nil)
	ranked, cls, err := e.Search(context.Background(), "find the greet function")
	require.NoError(t, err)
	assert.Equal(t, IntentCodeSearch, cls.Intent)

	// The code filter keeps only the code chunk.
	require.Len(t, ranked, 1)
	assert.Equal(t, uint64(1), ranked[0].ID)
	assert.Equal(t, "src/app.py", ranked[0].FilePath())
}

func TestEngineAskEnumeration(t *testing.T) {
	hit := docPoint(1, "docs/flows.md", "Flows", "1. checkout\n2. refund", 1)
	sibling := docPoint(2, "docs/flows.md", "Flows", "3. chargeback", 10)
	cloud := newFakeStore(hit, sibling)
	cloud.searchResults = []*store.ScoredPoint{{Point: *hit, Score: 0.9}}

	e := newTestEngine(t, cloud, nil)
	answer, cls, err := e.Ask(context.Background(), "list all flows")
	require.NoError(t, err)
	assert.Equal(t, IntentEnumeration, cls.Intent)

	// Section expansion pulls the sibling chunk in, so the list is
	// complete even though only one chunk was a direct hit.
	assert.Contains(t, answer.Text, "3. chargeback")
	assert.Contains(t, answer.Text, "Complete list (1..3)")
	require.NotEmpty(t, answer.Citations)
	assert.Equal(t, "docs/flows.md (line 1)", answer.Citations[0].String())
}

func TestEngineAskComparison(t *testing.T) {
	sqlitePoint := docPoint(1, "docs/sqlite.md", "SQLite", "sqlite is embedded", 1)
	blevePoint := docPoint(2, "docs/bleve.md", "Bleve", "bleve is a go library", 1)
	cloud := newFakeStore(sqlitePoint, blevePoint)
	cloud.searchResults = []*store.ScoredPoint{
		{Point: *sqlitePoint, Score: 0.9},
		{Point: *blevePoint, Score: 0.8},
	}

	e := newTestEngine(t, cloud, nil)
	answer, cls, err := e.Ask(context.Background(), "difference between sqlite and bleve")
	require.NoError(t, err)
	require.Equal(t, IntentComparison, cls.Intent)
	require.Equal(t, []string{"sqlite", "bleve"}, cls.Operands)

	assert.Contains(t, answer.Text, "## sqlite")
	assert.Contains(t, answer.Text, "## bleve")
}

func TestEngineRerankCapsPool(t *testing.T) {
	var points []*store.Point
	var hits []*store.ScoredPoint
	for id := uint64(1); id <= MaxRerankPool+20; id++ {
		p := docPoint(id, "docs/a.md", "", "content", int(id)*10)
		points = append(points, p)
		hits = append(hits, &store.ScoredPoint{Point: *p, Score: float32(1.0 - float64(id)*0.001)})
	}
	cloud := newFakeStore(points...)
	cloud.searchResults = hits

	r, err := NewRetriever(RetrieverOptions{
		Collections: []Collection{{Source: SourceCloud, Store: cloud}},
		Embedder:    embed.NewStaticEmbedder(),
		SearchTopK:  MaxRerankPool + 20,
	})
	require.NoError(t, err)

	// rerankTopK 0 falls back to the default of 10.
	e := NewEngine(r, &NoOpReranker{}, 0, nil)
	ranked, _, err := e.Search(context.Background(), "anything at all today")
	require.NoError(t, err)
	assert.Len(t, ranked, DefaultRerankTopK)
}

func TestEngineSearchEmptyIndex(t *testing.T) {
	e := newTestEngine(t, newFakeStore(), nil)
	ranked, _, err := e.Search(context.Background(), "how does anything work")
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
