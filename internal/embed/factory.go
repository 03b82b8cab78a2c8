package embed

import (
	"context"
	"log/slog"
)

// Options selects and configures the process-wide embedder.
type Options struct {
	Endpoint string
	Model    string
	// ForceStatic skips Ollama detection, mainly for tests and CI.
	ForceStatic bool
	CacheSize   int
	Logger      *slog.Logger
}

// New picks the best available embedder: Ollama when the server is
// reachable and has the model, otherwise the static hash embedder.
// Either way the result is wrapped in an LRU cache.
func New(ctx context.Context, opts Options) (Embedder, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var inner Embedder
	if opts.ForceStatic {
		inner = NewStaticEmbedder()
	} else {
		ollamaOpts := []OllamaOption{WithLogger(logger)}
		if opts.Endpoint != "" {
			ollamaOpts = append(ollamaOpts, WithEndpoint(opts.Endpoint))
		}
		if opts.Model != "" {
			ollamaOpts = append(ollamaOpts, WithModel(opts.Model))
		}
		ollama := NewOllamaEmbedder(ollamaOpts...)
		if ollama.Available(ctx) {
			inner = ollama
		} else {
			logger.Warn("ollama unavailable, using static embedder",
				"endpoint", ollama.endpoint, "model", ollama.model)
			inner = NewStaticEmbedder()
		}
	}

	cached, err := NewCachedEmbedder(inner, opts.CacheSize)
	if err != nil {
		return nil, err
	}
	logger.Info("embedder ready", "model", cached.ModelID(), "dimensions", cached.Dimensions())
	return cached, nil
}
