package search

import (
	"context"

	"github.com/Aman-CERP/ragmcp/internal/store"
)

// expandScrollLimit caps how many chunks one section expansion pulls.
const expandScrollLimit = 1000

// expandSections widens the candidate pool to whole sections: for each
// directly retrieved candidate with a section heading, every live chunk
// sharing its (file_path, section) joins the pool. Inserted chunks get
// a neutral score, the median of the pool before expansion, so they
// rank behind direct hits but survive into reranking.
//
// Expansion runs strictly before reranking. A failed section scroll
// degrades to the unexpanded candidate with a warning.
func (r *Retriever) expandSections(ctx context.Context, pool []*Candidate) []*Candidate {
	if len(pool) == 0 {
		return pool
	}

	neutral := medianScore(pool)

	inPool := make(map[uint64]bool, len(pool))
	for _, c := range pool {
		inPool[c.ID] = true
	}

	type sectionKey struct {
		source, path, section string
	}
	done := make(map[sectionKey]bool)

	// Iterate a snapshot; appends must not re-trigger expansion.
	for _, c := range pool[:len(pool):len(pool)] {
		section := c.Section()
		if section == "" {
			continue
		}
		key := sectionKey{c.Source, c.FilePath(), section}
		if done[key] {
			continue
		}
		done[key] = true

		col, ok := r.collectionFor(c.Source)
		if !ok {
			continue
		}

		filter := &store.Filter{FilePath: c.FilePath(), Section: section}
		points, _, err := col.Store.Scroll(ctx, filter, 0, expandScrollLimit)
		if err != nil {
			r.logger.Warn("section expansion failed",
				"file_path", c.FilePath(), "section", section, "error", err)
			continue
		}

		for _, p := range points {
			if inPool[p.ID] {
				continue
			}
			inPool[p.ID] = true
			pool = append(pool, &Candidate{
				ID:       p.ID,
				Score:    neutral,
				Payload:  p.Payload,
				Source:   c.Source,
				Expanded: true,
			})
		}
	}

	sortCandidates(pool)
	return pool
}
