package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragmcp/internal/store"
)

func scored(id uint64, score float32, path string, line int) *store.ScoredPoint {
	return &store.ScoredPoint{
		Point: store.Point{
			ID: id,
			Payload: map[string]any{
				"file_path":  path,
				"line_start": int64(line),
				"line_end":   int64(line + 5),
				"content":    "content",
			},
		},
		Score: score,
	}
}

func TestFuseCombinesLegs(t *testing.T) {
	vec := []*store.ScoredPoint{
		scored(1, 0.9, "docs/a.md", 1),
		scored(2, 0.5, "docs/b.md", 1),
	}
	lex := []*store.BM25Result{
		{DocID: 1, Score: 8.0},
		{DocID: 3, Score: 2.0},
	}
	lexPoints := map[uint64]*store.Point{
		3: {ID: 3, Payload: map[string]any{"file_path": "docs/c.md", "line_start": int64(1)}},
	}

	got := fuse(vec, lex, lexPoints, DefaultWeights(), SourceCloud)
	require.Len(t, got, 3)

	// Doc 1 is in both legs: 0.7*0.9 + 0.3*1.0 (max BM25 normalizes
	// to 1.0) = 0.93 and ranks first.
	assert.Equal(t, uint64(1), got[0].ID)
	assert.InDelta(t, 0.93, got[0].Score, 1e-9)
	assert.Equal(t, SourceCloud, got[0].Source)

	// Doc 2 is vector-only: 0.7*0.5.
	// Doc 3 is lexical-only at the min score: 0.3*0.0.
	byID := map[uint64]*Candidate{}
	for _, c := range got {
		byID[c.ID] = c
	}
	assert.InDelta(t, 0.35, byID[2].Score, 1e-9)
	assert.InDelta(t, 0.0, byID[3].Score, 1e-9)
	assert.Equal(t, "docs/c.md", byID[3].FilePath())
}

func TestFuseDropsUnresolvableLexicalHits(t *testing.T) {
	lex := []*store.BM25Result{{DocID: 99, Score: 3.0}}

	got := fuse(nil, lex, nil, DefaultWeights(), SourceLocal)
	assert.Empty(t, got)
}

func TestBM25NormalizerSingleHit(t *testing.T) {
	norm := bm25Normalizer([]*store.BM25Result{{DocID: 1, Score: 4.2}})
	assert.Equal(t, 1.0, norm(4.2))
}

func TestMergeAcrossSourcesDedupes(t *testing.T) {
	cloud := []*Candidate{
		{ID: 1, Score: 0.9, Source: SourceCloud, Payload: map[string]any{"file_path": "docs/a.md", "line_start": int64(1)}},
	}
	local := []*Candidate{
		// Same chunk indexed in both collections, lower score locally.
		{ID: 501, Score: 0.7, Source: SourceLocal, Payload: map[string]any{"file_path": "docs/a.md", "line_start": int64(1)}},
		{ID: 502, Score: 0.8, Source: SourceLocal, Payload: map[string]any{"file_path": "docs/b.md", "line_start": int64(10)}},
	}

	got := mergeAcrossSources(cloud, local)
	require.Len(t, got, 2)
	assert.Equal(t, SourceCloud, got[0].Source)
	assert.InDelta(t, 0.9, got[0].Score, 1e-9)
	assert.Equal(t, "docs/b.md", got[1].FilePath())
}

func TestMergeAcrossSourcesKeepsHigherScore(t *testing.T) {
	cloud := []*Candidate{
		{ID: 1, Score: 0.4, Source: SourceCloud, Payload: map[string]any{"file_path": "docs/a.md", "line_start": int64(1)}},
	}
	local := []*Candidate{
		{ID: 501, Score: 0.9, Source: SourceLocal, Payload: map[string]any{"file_path": "docs/a.md", "line_start": int64(1)}},
	}

	got := mergeAcrossSources(cloud, local)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.9, got[0].Score, 1e-9)
	assert.Equal(t, SourceLocal, got[0].Source)
}

func TestMedianScore(t *testing.T) {
	assert.Equal(t, 0.0, medianScore(nil))
	assert.InDelta(t, 0.5, medianScore([]*Candidate{{Score: 0.5}}), 1e-9)
	assert.InDelta(t, 0.4, medianScore([]*Candidate{{Score: 0.2}, {Score: 0.6}}), 1e-9)
	assert.InDelta(t, 0.6, medianScore([]*Candidate{{Score: 0.9}, {Score: 0.6}, {Score: 0.1}}), 1e-9)
}

func TestSortCandidatesTieBreaksByID(t *testing.T) {
	cs := []*Candidate{
		{ID: 7, Score: 0.5},
		{ID: 3, Score: 0.5},
		{ID: 1, Score: 0.9},
	}
	sortCandidates(cs)
	assert.Equal(t, uint64(1), cs[0].ID)
	assert.Equal(t, uint64(3), cs[1].ID)
	assert.Equal(t, uint64(7), cs[2].ID)
}
