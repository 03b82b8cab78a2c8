package search

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/store"
)

// fakeStore serves canned search results and an in-memory point table.
type fakeStore struct {
	points        map[uint64]*store.Point
	searchResults []*store.ScoredPoint
	scrollErr     error
}

func newFakeStore(points ...*store.Point) *fakeStore {
	f := &fakeStore{points: make(map[uint64]*store.Point)}
	for _, p := range points {
		f.points[p.ID] = p
	}
	return f
}

func (f *fakeStore) EnsureCollection(context.Context, string, int, []string) error { return nil }

func (f *fakeStore) Upsert(_ context.Context, points []*store.Point) error {
	for _, p := range points {
		f.points[p.ID] = p
	}
	return nil
}

func (f *fakeStore) DeleteByIDs(_ context.Context, ids []uint64) error {
	for _, id := range ids {
		delete(f.points, id)
	}
	return nil
}

func (f *fakeStore) SoftDelete(context.Context, *store.Filter) (int, error) { return 0, nil }
func (f *fakeStore) Recover(context.Context, *store.Filter) (int, error)   { return 0, nil }

func (f *fakeStore) GetPoints(_ context.Context, ids []uint64, _ bool) ([]*store.Point, error) {
	var out []*store.Point
	for _, id := range ids {
		if p, ok := f.points[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) Scroll(_ context.Context, filter *store.Filter, _ uint64, limit int) ([]*store.Point, uint64, error) {
	if f.scrollErr != nil {
		return nil, 0, f.scrollErr
	}
	var out []*store.Point
	for _, p := range f.points {
		if filter != nil && filter.FilePath != "" && p.Payload["file_path"] != filter.FilePath {
			continue
		}
		if filter != nil && filter.Section != "" && p.Payload["section"] != filter.Section {
			continue
		}
		if deleted, _ := p.Payload["is_deleted"].(bool); deleted {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, 0, nil
}

func (f *fakeStore) Search(_ context.Context, _ []float32, filter *store.Filter, k int, _ bool) ([]*store.ScoredPoint, error) {
	var out []*store.ScoredPoint
	for _, sp := range f.searchResults {
		if filter != nil && filter.ContentType != "" && sp.Payload["content_type"] != filter.ContentType {
			continue
		}
		out = append(out, sp)
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeStore) Stats(context.Context) (*store.CollectionStats, error) {
	return &store.CollectionStats{Total: int64(len(f.points))}, nil
}

func (f *fakeStore) Close() error { return nil }

var _ store.VectorStore = (*fakeStore)(nil)

// fakeBM25 returns canned lexical hits.
type fakeBM25 struct {
	results []*store.BM25Result
	err     error
}

func (f *fakeBM25) Index(context.Context, []*store.Document) error { return nil }

func (f *fakeBM25) Search(context.Context, string, int) ([]*store.BM25Result, error) {
	return f.results, f.err
}

func (f *fakeBM25) Delete(context.Context, []uint64) error { return nil }
func (f *fakeBM25) AllIDs() ([]uint64, error)              { return nil, nil }
func (f *fakeBM25) Stats() *store.BM25Stats                { return &store.BM25Stats{} }
func (f *fakeBM25) Close() error                           { return nil }

var _ store.BM25Index = (*fakeBM25)(nil)

func docPoint(id uint64, path, section, content string, line int) *store.Point {
	return &store.Point{
		ID: id,
		Payload: map[string]any{
			"file_path":    path,
			"section":      section,
			"content":      content,
			"content_type": "text",
			"line_start":   int64(line),
			"line_end":     int64(line + 4),
			"is_deleted":   false,
		},
	}
}

func newTestRetriever(t *testing.T, cloud *fakeStore, bm25 store.BM25Index) *Retriever {
	t.Helper()
	r, err := NewRetriever(RetrieverOptions{
		Collections: []Collection{{Source: SourceCloud, Store: cloud}},
		BM25:        bm25,
		Embedder:    embed.NewStaticEmbedder(),
		SearchTopK:  20,
	})
	require.NoError(t, err)
	return r
}

func TestRetrieveHybridMerge(t *testing.T) {
	p1 := docPoint(1, "docs/a.md", "Overview", "vector hit", 1)
	p2 := docPoint(2, "docs/b.md", "Setup", "lexical hit", 1)
	cloud := newFakeStore(p1, p2)
	cloud.searchResults = []*store.ScoredPoint{{Point: *p1, Score: 0.9}}
	bm25 := &fakeBM25{results: []*store.BM25Result{
		{DocID: 1, Score: 5.0},
		{DocID: 2, Score: 3.0},
	}}

	r := newTestRetriever(t, cloud, bm25)
	got, err := r.Retrieve(context.Background(), "setup overview", Classification{Intent: IntentFactual})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Doc 1 scores on both legs and ranks first; doc 2 resolved its
	// payload through GetPoints.
	assert.Equal(t, uint64(1), got[0].ID)
	assert.Greater(t, got[0].Score, got[1].Score)
	assert.Equal(t, "docs/b.md", got[1].FilePath())
	assert.Equal(t, SourceCloud, got[1].Source)
}

func TestRetrieveWithoutSidecarUsesFullVectorWeight(t *testing.T) {
	p1 := docPoint(1, "docs/a.md", "Overview", "content", 1)
	cloud := newFakeStore(p1)
	cloud.searchResults = []*store.ScoredPoint{{Point: *p1, Score: 0.8}}

	r := newTestRetriever(t, cloud, nil)
	got, err := r.Retrieve(context.Background(), "anything", Classification{Intent: IntentFactual})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.8, got[0].Score, 1e-9)
}

func TestRetrieveSkipsDeletedLexicalHits(t *testing.T) {
	deleted := docPoint(3, "docs/gone.md", "", "stale", 1)
	deleted.Payload["is_deleted"] = true
	cloud := newFakeStore(deleted)
	bm25 := &fakeBM25{results: []*store.BM25Result{{DocID: 3, Score: 4.0}}}

	r := newTestRetriever(t, cloud, bm25)
	got, err := r.Retrieve(context.Background(), "stale", Classification{Intent: IntentFactual})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieveCodeFilter(t *testing.T) {
	code := docPoint(1, "src/app.py", "", "def greet(): ...", 10)
	code.Payload["content_type"] = "code"
	doc := docPoint(2, "docs/a.md", "Overview", "greeting docs", 1)
	cloud := newFakeStore(code, doc)
	cloud.searchResults = []*store.ScoredPoint{
		{Point: *doc, Score: 0.9},
		{Point: *code, Score: 0.8},
	}

	r := newTestRetriever(t, cloud, nil)
	cls := Classification{Intent: IntentCodeSearch, Hints: Hints{ContentType: "code"}}
	got, err := r.Retrieve(context.Background(), "find the greet function", cls)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].ID)
}

func TestRetrieveExpandsSections(t *testing.T) {
	hit := docPoint(1, "docs/flows.md", "Payment Flows", "1. checkout", 10)
	sibling := docPoint(2, "docs/flows.md", "Payment Flows", "2. refund", 15)
	other := docPoint(3, "docs/other.md", "Other", "unrelated", 1)
	cloud := newFakeStore(hit, sibling, other)
	cloud.searchResults = []*store.ScoredPoint{{Point: *hit, Score: 0.9}}

	r := newTestRetriever(t, cloud, nil)
	cls := Classification{Intent: IntentEnumeration, Hints: Hints{Expand: true}}
	got, err := r.Retrieve(context.Background(), "list all payment flows", cls)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, uint64(1), got[0].ID)
	assert.False(t, got[0].Expanded)
	assert.Equal(t, uint64(2), got[1].ID)
	assert.True(t, got[1].Expanded)
	// Expansion chunks carry the neutral (median) score, here the only
	// direct hit's score.
	assert.InDelta(t, got[0].Score, got[1].Score, 1e-9)
}

func TestRetrieveExpansionFailureDegrades(t *testing.T) {
	hit := docPoint(1, "docs/flows.md", "Payment Flows", "1. checkout", 10)
	cloud := newFakeStore(hit)
	cloud.searchResults = []*store.ScoredPoint{{Point: *hit, Score: 0.9}}
	cloud.scrollErr = context.DeadlineExceeded

	r := newTestRetriever(t, cloud, nil)
	cls := Classification{Intent: IntentEnumeration, Hints: Hints{Expand: true}}
	got, err := r.Retrieve(context.Background(), "list all payment flows", cls)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].ID)
}

func TestRetrieveCrossCollectionProvenance(t *testing.T) {
	cloudPoint := docPoint(1, "docs/a.md", "Overview", "cloud copy", 1)
	localPoint := docPoint(501, "docs/local.md", "Notes", "local only", 1)
	cloud := newFakeStore(cloudPoint)
	cloud.searchResults = []*store.ScoredPoint{{Point: *cloudPoint, Score: 0.9}}
	local := newFakeStore(localPoint)
	local.searchResults = []*store.ScoredPoint{{Point: *localPoint, Score: 0.6}}

	r, err := NewRetriever(RetrieverOptions{
		Collections: []Collection{
			{Source: SourceCloud, Store: cloud},
			{Source: SourceLocal, Store: local},
		},
		Embedder: embed.NewStaticEmbedder(),
	})
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), "overview notes", Classification{Intent: IntentFactual})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, SourceCloud, got[0].Source)
	assert.Equal(t, SourceLocal, got[1].Source)
}

func TestNewRetrieverValidation(t *testing.T) {
	_, err := NewRetriever(RetrieverOptions{Embedder: embed.NewStaticEmbedder()})
	assert.Error(t, err)

	_, err = NewRetriever(RetrieverOptions{
		Collections: []Collection{{Source: SourceCloud, Store: newFakeStore()}},
		Embedder:    embed.NewStaticEmbedder(),
		Weights:     Weights{Vector: 0.5, BM25: 0.2},
	})
	assert.Error(t, err)
}
