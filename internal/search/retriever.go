package search

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/store"
)

// Source provenance values carried on every candidate.
const (
	SourceCloud = "cloud"
	SourceLocal = "local"
)

// DefaultSearchTopK is the per-leg candidate count when the config and
// the intent hints are both silent.
const DefaultSearchTopK = 20

// Collection pairs a vector store with its provenance label. The
// retriever queries collections in slice order: cloud first.
type Collection struct {
	Source string
	Store  store.VectorStore
}

// Retriever runs the hybrid retrieval stage: a vector leg per
// collection plus one lexical leg against the BM25 sidecar, fused and
// deduplicated across collections.
type Retriever struct {
	collections []Collection
	bm25        store.BM25Index
	embedder    embed.Embedder
	weights     Weights
	topK        int
	logger      *slog.Logger
}

// RetrieverOptions configures NewRetriever. BM25 may be nil; retrieval
// then runs vector-only at full weight.
type RetrieverOptions struct {
	Collections []Collection
	BM25        store.BM25Index
	Embedder    embed.Embedder
	Weights     Weights
	SearchTopK  int
	Logger      *slog.Logger
}

// NewRetriever validates the weight split and builds a retriever.
func NewRetriever(opts RetrieverOptions) (*Retriever, error) {
	if len(opts.Collections) == 0 {
		return nil, errors.Validation("at least one collection is required")
	}
	if opts.Embedder == nil {
		return nil, errors.Validation("an embedder is required")
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	if opts.SearchTopK <= 0 {
		opts.SearchTopK = DefaultSearchTopK
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		collections: opts.Collections,
		bm25:        opts.BM25,
		embedder:    opts.Embedder,
		weights:     opts.Weights,
		topK:        opts.SearchTopK,
		logger:      logger,
	}, nil
}

// Retrieve builds the candidate pool for a classified query: both legs
// run concurrently, results fuse per collection, collections merge with
// provenance, and section expansion applies when the hints ask for it.
func (r *Retriever) Retrieve(ctx context.Context, query string, cls Classification) ([]*Candidate, error) {
	topK := r.topK
	if cls.Hints.TopK > 0 {
		topK = cls.Hints.TopK
	}

	var filter *store.Filter
	if cls.Hints.ContentType != "" || cls.Hints.Language != "" {
		filter = &store.Filter{ContentType: cls.Hints.ContentType, Language: cls.Hints.Language}
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	queryVec := vectors[0]

	vecResults := make([][]*store.ScoredPoint, len(r.collections))
	var lexResults []*store.BM25Result
	lexicalDown := r.bm25 == nil

	g, gctx := errgroup.WithContext(ctx)
	for i, col := range r.collections {
		g.Go(func() error {
			hits, err := col.Store.Search(gctx, queryVec, filter, topK, false)
			if err != nil {
				return err
			}
			vecResults[i] = hits
			return nil
		})
	}
	if r.bm25 != nil {
		g.Go(func() error {
			hits, err := r.bm25.Search(gctx, query, topK)
			if err != nil {
				// The sidecar is derived state; losing it degrades
				// retrieval, it never fails the query.
				r.logger.Warn("lexical leg failed, continuing vector-only", "error", err)
				lexicalDown = true
				return nil
			}
			lexResults = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	weights := r.weights
	if lexicalDown {
		weights = Weights{Vector: 1.0}
		r.logger.Warn("bm25 sidecar unavailable, vector weight forced to 1.0")
	}

	pools := make([][]*Candidate, len(r.collections))
	for i, col := range r.collections {
		lexPoints := r.resolveLexical(ctx, col, vecResults[i], lexResults, filter)
		pools[i] = fuse(vecResults[i], lexResults, lexPoints, weights, col.Source)
	}
	pool := mergeAcrossSources(pools...)

	if cls.Hints.Expand {
		pool = r.expandSections(ctx, pool)
	}
	return pool, nil
}

// resolveLexical fetches the points behind BM25 hits that the vector
// leg did not already return, so lexical-only candidates carry a
// payload. Deleted points and points the active filter would have
// excluded are dropped.
func (r *Retriever) resolveLexical(
	ctx context.Context,
	col Collection,
	vec []*store.ScoredPoint,
	lex []*store.BM25Result,
	filter *store.Filter,
) map[uint64]*store.Point {
	if len(lex) == 0 {
		return nil
	}

	have := make(map[uint64]bool, len(vec))
	for _, sp := range vec {
		have[sp.ID] = true
	}
	var missing []uint64
	for _, hit := range lex {
		if !have[hit.DocID] {
			missing = append(missing, hit.DocID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	points, err := col.Store.GetPoints(ctx, missing, false)
	if err != nil {
		r.logger.Warn("resolving lexical hits failed", "source", col.Source, "error", err)
		return nil
	}

	out := make(map[uint64]*store.Point, len(points))
	for _, p := range points {
		if deleted, _ := p.Payload["is_deleted"].(bool); deleted {
			continue
		}
		if filter != nil && filter.ContentType != "" &&
			payloadString(p.Payload, "content_type") != filter.ContentType {
			continue
		}
		if filter != nil && filter.Language != "" &&
			payloadString(p.Payload, "language") != filter.Language {
			continue
		}
		out[p.ID] = p
	}
	return out
}

// collectionFor maps a provenance label back to its collection.
func (r *Retriever) collectionFor(source string) (Collection, bool) {
	for _, col := range r.collections {
		if col.Source == source {
			return col, true
		}
	}
	return Collection{}, false
}
