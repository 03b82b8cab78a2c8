package search

import (
	"context"
	"log/slog"
)

// Engine wires the query pipeline end to end: classify, retrieve,
// expand, rerank, synthesize. The MCP tools and the CLI search command
// sit directly on top of it.
type Engine struct {
	classifier  *Classifier
	retriever   *Retriever
	reranker    Reranker
	synthesizer *Synthesizer
	rerankTopK  int
	logger      *slog.Logger
}

// NewEngine assembles the pipeline. reranker may be a NoOpReranker;
// rerankTopK falls back to DefaultRerankTopK when non-positive.
func NewEngine(retriever *Retriever, reranker Reranker, rerankTopK int, logger *slog.Logger) *Engine {
	if rerankTopK <= 0 {
		rerankTopK = DefaultRerankTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	if reranker == nil {
		reranker = &NoOpReranker{}
	}
	return &Engine{
		classifier:  NewClassifier(),
		retriever:   retriever,
		reranker:    reranker,
		synthesizer: NewSynthesizer(),
		rerankTopK:  rerankTopK,
		logger:      logger,
	}
}

// Classify exposes the classifier for callers that report intent
// alongside results.
func (e *Engine) Classify(query string) Classification {
	return e.classifier.Classify(query)
}

// Options are caller-side overrides on top of the classifier's hints.
type Options struct {
	ContentType string
	Language    string
	TopK        int
}

// Search runs retrieval and reranking and returns the ranked chunks
// with the classification that drove them.
func (e *Engine) Search(ctx context.Context, query string) ([]*Candidate, Classification, error) {
	return e.searchClassified(ctx, query, e.classifier.Classify(query))
}

// SearchWith is Search with explicit filter and depth overrides.
func (e *Engine) SearchWith(ctx context.Context, query string, opts Options) ([]*Candidate, Classification, error) {
	cls := e.classifier.Classify(query)
	if opts.ContentType != "" {
		cls.Hints.ContentType = opts.ContentType
	}
	if opts.Language != "" {
		cls.Hints.Language = opts.Language
	}
	if opts.TopK > 0 {
		cls.Hints.TopK = opts.TopK
	}
	return e.searchClassified(ctx, query, cls)
}

func (e *Engine) searchClassified(ctx context.Context, query string, cls Classification) ([]*Candidate, Classification, error) {
	var pool []*Candidate
	if cls.Intent == IntentComparison && len(cls.Operands) == 2 {
		// Both operands retrieve independently and merge, so each side
		// of the comparison is represented in the results.
		left, err := e.retriever.Retrieve(ctx, cls.Operands[0], cls)
		if err != nil {
			return nil, cls, err
		}
		right, err := e.retriever.Retrieve(ctx, cls.Operands[1], cls)
		if err != nil {
			return nil, cls, err
		}
		pool = mergeAcrossSources(left, right)
	} else {
		var err error
		pool, err = e.retriever.Retrieve(ctx, query, cls)
		if err != nil {
			return nil, cls, err
		}
	}

	ranked, err := e.rerank(ctx, query, pool)
	if err != nil {
		return nil, cls, err
	}
	return ranked, cls, nil
}

// Ask runs the full pipeline and synthesizes an answer.
func (e *Engine) Ask(ctx context.Context, query string) (*Answer, Classification, error) {
	cls := e.classifier.Classify(query)

	if cls.Intent == IntentComparison && len(cls.Operands) == 2 {
		left, err := e.searchOperand(ctx, cls.Operands[0], cls)
		if err != nil {
			return nil, cls, err
		}
		right, err := e.searchOperand(ctx, cls.Operands[1], cls)
		if err != nil {
			return nil, cls, err
		}
		return e.synthesizer.Comparison(cls.Operands, left, right), cls, nil
	}

	ranked, _, err := e.searchClassified(ctx, query, cls)
	if err != nil {
		return nil, cls, err
	}
	return e.synthesizer.Synthesize(cls.Intent, ranked), cls, nil
}

// Explain answers with the explanation pipeline regardless of how the
// topic would classify on its own.
func (e *Engine) Explain(ctx context.Context, topic string) (*Answer, Classification, error) {
	cls := Classification{
		Intent:     IntentExplanation,
		Confidence: 1.0,
		Hints:      Hints{Expand: true, MergeContiguous: true},
	}
	ranked, _, err := e.searchClassified(ctx, topic, cls)
	if err != nil {
		return nil, cls, err
	}
	return e.synthesizer.Synthesize(cls.Intent, ranked), cls, nil
}

func (e *Engine) searchOperand(ctx context.Context, operand string, cls Classification) ([]*Candidate, error) {
	pool, err := e.retriever.Retrieve(ctx, operand, cls)
	if err != nil {
		return nil, err
	}
	return e.rerank(ctx, operand, pool)
}

// rerank caps the pool, scores it, and reorders candidates by rerank
// score. Mid-query reranker failures fail this request only.
func (e *Engine) rerank(ctx context.Context, query string, pool []*Candidate) ([]*Candidate, error) {
	if len(pool) == 0 {
		return []*Candidate{}, nil
	}
	if len(pool) > MaxRerankPool {
		pool = pool[:MaxRerankPool]
	}

	documents := make([]string, len(pool))
	for i, c := range pool {
		documents[i] = c.Content()
	}

	results, err := e.reranker.Rerank(ctx, query, documents, e.rerankTopK)
	if err != nil {
		return nil, err
	}

	ranked := make([]*Candidate, 0, len(results))
	for _, r := range results {
		c := pool[r.Index]
		c.Score = r.Score
		ranked = append(ranked, c)
	}
	return ranked, nil
}
