package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/ragmcp/internal/config"
	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/index"
	"github.com/Aman-CERP/ragmcp/internal/search"
	"github.com/Aman-CERP/ragmcp/internal/store"
)

// app holds everything a command needs, wired from one config.
type app struct {
	cfg      *config.Config
	cloud    store.VectorStore
	local    store.VectorStore
	bm25     store.BM25Index
	embedder embed.Embedder
	engine   *search.Engine
	coord    *index.Coordinator
	logger   *slog.Logger

	closers []func() error
}

// appOptions narrows the wiring for store-scoped commands.
type appOptions struct {
	// cloudOnly / localOnly restrict which stores are opened; both false
	// means every configured store.
	cloudOnly bool
	localOnly bool
	// offline forces the static embedder, skipping model detection.
	offline bool
	// withEngine builds the retrieval pipeline on top of the stores.
	withEngine bool
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.Locate("")
}

// buildApp opens the configured stores and the shared pipeline.
func buildApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	if opts.cloudOnly && !cfg.HasCloud() {
		return nil, errors.Config("--cloud requires a cloud_qdrant section")
	}
	if opts.localOnly && !cfg.HasLocal() {
		return nil, errors.Config("--local requires a local_qdrant section")
	}

	a := &app{cfg: cfg, logger: slog.Default()}

	if cfg.HasCloud() && !opts.localOnly {
		qs, err := store.NewQdrantStore(store.QdrantOptions{
			URL:           cfg.CloudQdrant.URL,
			APIKey:        cfg.CloudQdrant.APIKey,
			Collection:    cfg.CloudQdrant.Collection,
			Timeout:       cfg.CloudQdrant.Timeout(),
			RetryAttempts: cfg.CloudQdrant.RetryAttempts,
			Logger:        a.logger,
		})
		if err != nil {
			return nil, a.closeWith(err)
		}
		a.cloud = qs
		a.closers = append(a.closers, qs.Close)
	}
	if cfg.HasLocal() && !opts.cloudOnly {
		ls, err := store.NewLocalStore(filepath.Join(cfg.DataDir(), "local"), a.logger)
		if err != nil {
			return nil, a.closeWith(err)
		}
		a.local = ls
		a.closers = append(a.closers, ls.Close)
	}
	if a.cloud == nil && a.local == nil {
		return nil, a.closeWith(errors.Config("no vector store selected"))
	}

	bm25, err := store.NewBM25Index(cfg.DataDir(), store.DefaultBM25Config(), cfg.BM25Backend)
	if err != nil {
		return nil, a.closeWith(err)
	}
	a.bm25 = bm25
	a.closers = append(a.closers, bm25.Close)

	a.embedder, err = embed.New(ctx, embed.Options{
		Endpoint:    cfg.EmbeddingEndpoint,
		Model:       cfg.EmbeddingModels.Doc,
		ForceStatic: opts.offline,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, a.closeWith(err)
	}

	a.coord, err = index.NewCoordinator(index.CoordinatorOptions{
		Config:   cfg,
		Cloud:    a.cloud,
		Local:    a.local,
		BM25:     a.bm25,
		Embedder: a.embedder,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, a.closeWith(err)
	}

	if opts.withEngine {
		var collections []search.Collection
		if a.cloud != nil {
			collections = append(collections, search.Collection{Source: search.SourceCloud, Store: a.cloud})
		}
		if a.local != nil {
			collections = append(collections, search.Collection{Source: search.SourceLocal, Store: a.local})
		}
		retriever, err := search.NewRetriever(search.RetrieverOptions{
			Collections: collections,
			BM25:        a.bm25,
			Embedder:    a.embedder,
			Weights: search.Weights{
				Vector: cfg.Retrieval.Weights.Vector,
				BM25:   cfg.Retrieval.Weights.BM25,
			},
			SearchTopK: cfg.Retrieval.SearchTopK,
			Logger:     a.logger,
		})
		if err != nil {
			return nil, a.closeWith(err)
		}
		reranker := search.SelectReranker(ctx,
			cfg.Retrieval.UseReranking, cfg.EmbeddingEndpoint, cfg.EmbeddingModels.Reranking, a.logger)
		a.engine = search.NewEngine(retriever, reranker, cfg.Retrieval.RerankTopK, a.logger)
	}

	return a, nil
}

// namedStore pairs a store with its provenance label.
type namedStore struct {
	Name  string
	Store store.VectorStore
}

// stores lists the opened stores, cloud first.
func (a *app) stores() []namedStore {
	var out []namedStore
	if a.cloud != nil {
		out = append(out, namedStore{"cloud", a.cloud})
	}
	if a.local != nil {
		out = append(out, namedStore{"local", a.local})
	}
	return out
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func (a *app) closeWith(err error) error {
	a.Close()
	return err
}
