package search

import (
	"sort"

	"github.com/Aman-CERP/ragmcp/internal/store"
)

// fuse merges one store's vector and lexical legs into a candidate
// list scored s = w_vec·v + w_bm25·b. v is the store's similarity,
// already in [0,1]; b is the BM25 score min-max normalized across this
// query's lexical hits. Candidates sharing an id keep the higher
// combined score.
//
// lexPoints resolves BM25 doc ids to their stored points; lexical hits
// without a resolvable point are dropped (they reference chunks that
// were hard-deleted since the sidecar was last rebuilt).
func fuse(
	vec []*store.ScoredPoint,
	lex []*store.BM25Result,
	lexPoints map[uint64]*store.Point,
	w Weights,
	source string,
) []*Candidate {
	merged := make(map[uint64]*Candidate, len(vec)+len(lex))

	for _, sp := range vec {
		c := &Candidate{
			ID:       sp.ID,
			VecScore: float64(sp.Score),
			Payload:  sp.Payload,
			Source:   source,
		}
		c.Score = w.Vector * c.VecScore
		merged[c.ID] = c
	}

	norm := bm25Normalizer(lex)
	for _, r := range lex {
		b := norm(r.Score)
		if existing, ok := merged[r.DocID]; ok {
			existing.BM25Score = b
			existing.Score = w.Vector*existing.VecScore + w.BM25*b
			continue
		}
		p, ok := lexPoints[r.DocID]
		if !ok {
			continue
		}
		merged[r.DocID] = &Candidate{
			ID:        r.DocID,
			BM25Score: b,
			Score:     w.BM25 * b,
			Payload:   p.Payload,
			Source:    source,
		}
	}

	out := make([]*Candidate, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sortCandidates(out)
	return out
}

// bm25Normalizer returns a min-max normalizer over this query's
// lexical scores. A single hit, or a flat score range, maps to 1.0.
func bm25Normalizer(lex []*store.BM25Result) func(float64) float64 {
	if len(lex) == 0 {
		return func(float64) float64 { return 0 }
	}
	min, max := lex[0].Score, lex[0].Score
	for _, r := range lex[1:] {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	if max == min {
		return func(float64) float64 { return 1.0 }
	}
	span := max - min
	return func(s float64) float64 { return (s - min) / span }
}

// mergeAcrossSources deduplicates candidates from multiple collections
// by (file_path, line_start), keeping the higher score. Input order is
// cloud before local, so on a score tie the cloud copy wins.
func mergeAcrossSources(pools ...[]*Candidate) []*Candidate {
	type key struct {
		path string
		line int
	}
	seen := make(map[key]*Candidate)
	var out []*Candidate
	for _, pool := range pools {
		for _, c := range pool {
			k := key{c.FilePath(), c.LineStart()}
			if existing, ok := seen[k]; ok {
				if c.Score > existing.Score {
					*existing = *c
				}
				continue
			}
			seen[k] = c
			out = append(out, c)
		}
	}
	sortCandidates(out)
	return out
}

// sortCandidates orders by score descending, ties by id ascending.
func sortCandidates(cs []*Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].ID < cs[j].ID
	})
}

// medianScore returns the median candidate score, the neutral score
// assigned to expansion chunks that were never directly retrieved.
func medianScore(cs []*Candidate) float64 {
	if len(cs) == 0 {
		return 0
	}
	scores := make([]float64, len(cs))
	for i, c := range cs {
		scores[i] = c.Score
	}
	sort.Float64s(scores)
	mid := len(scores) / 2
	if len(scores)%2 == 0 {
		return (scores[mid-1] + scores[mid]) / 2
	}
	return scores[mid]
}
