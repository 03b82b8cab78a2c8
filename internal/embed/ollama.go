package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Aman-CERP/ragmcp/internal/errors"
)

// knownDimensions maps model names to their output dimension so callers
// can size collections before the first embed call.
var knownDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// OllamaEmbedder generates embeddings through an Ollama server's
// /api/embed endpoint.
type OllamaEmbedder struct {
	endpoint  string
	model     string
	batchSize int
	dims      int
	client    *http.Client
	logger    *slog.Logger
}

// OllamaOption configures an OllamaEmbedder.
type OllamaOption func(*OllamaEmbedder)

// WithEndpoint sets the Ollama base URL.
func WithEndpoint(endpoint string) OllamaOption {
	return func(e *OllamaEmbedder) {
		e.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// WithModel sets the embedding model.
func WithModel(model string) OllamaOption {
	return func(e *OllamaEmbedder) {
		e.model = model
	}
}

// WithBatchSize caps how many texts go in one HTTP request.
func WithBatchSize(n int) OllamaOption {
	return func(e *OllamaEmbedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(e *OllamaEmbedder) {
		e.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) OllamaOption {
	return func(e *OllamaEmbedder) {
		e.logger = l
	}
}

// NewOllamaEmbedder creates an embedder backed by an Ollama server.
func NewOllamaEmbedder(opts ...OllamaOption) *OllamaEmbedder {
	e := &OllamaEmbedder{
		endpoint:  DefaultEndpoint,
		model:     DefaultModel,
		batchSize: DefaultBatchSize,
		client:    &http.Client{Timeout: DefaultTimeout},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.dims = knownDimensions[e.model]
	return e
}

var _ Embedder = (*OllamaEmbedder)(nil)

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one unit-length vector per input text, in input order.
// Each batch is retried once before the whole call fails with
// EMBED_FAILED.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prepared := prepare(texts)

	out := make([][]float32, len(prepared))
	for start := 0; start < len(prepared); start += e.batchSize {
		end := start + e.batchSize
		if end > len(prepared) {
			end = len(prepared)
		}
		vectors, err := errors.RetryWithResult(ctx, errors.EmbedRetryConfig(), func() ([][]float32, error) {
			return e.embedBatch(ctx, prepared[start:end])
		})
		if err != nil {
			return nil, errors.EmbedFailed(err).
				WithDetail("model", e.model).
				WithDetail("endpoint", e.endpoint)
		}
		copy(out[start:end], vectors)
	}
	return out, nil
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	// Ollama rejects empty strings, so embed only the non-empty ones
	// and backfill zero vectors for the rest.
	nonEmpty := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, t := range texts {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
			positions = append(positions, i)
		}
	}

	vectors := make([][]float32, len(texts))
	if len(nonEmpty) > 0 {
		embedded, err := e.request(ctx, nonEmpty)
		if err != nil {
			return nil, err
		}
		if len(embedded) != len(nonEmpty) {
			return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(embedded), len(nonEmpty))
		}
		for i, v := range embedded {
			vectors[positions[i]] = normalizeVector(v)
		}
	}
	for i, v := range vectors {
		if v == nil {
			vectors[i] = make([]float32, e.Dimensions())
		}
	}
	return vectors, nil
}

// request performs one /api/embed call. The HTTP exchange runs in a
// goroutine so context cancellation interrupts a slow server.
func (e *OllamaEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	type result struct {
		vectors [][]float32
		err     error
	}
	ch := make(chan result, 1)

	go func() {
		resp, err := e.client.Do(req)
		if err != nil {
			ch <- result{err: fmt.Errorf("ollama request: %w", err)}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			ch <- result{err: fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))}
			return
		}

		var parsed ollamaEmbedResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			ch <- result{err: fmt.Errorf("decode embed response: %w", err)}
			return
		}
		ch <- result{vectors: parsed.Embeddings}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if e.dims == 0 && len(r.vectors) > 0 {
			e.dims = len(r.vectors[0])
		}
		return r.vectors, nil
	}
}

// Dimensions reports the model's output dimension. For models outside
// the known set it is learned from the first embed call.
func (e *OllamaEmbedder) Dimensions() int {
	if e.dims == 0 {
		return knownDimensions[DefaultModel]
	}
	return e.dims
}

// ModelID returns the Ollama model name.
func (e *OllamaEmbedder) ModelID() string {
	return e.model
}

// Close is a no-op; the HTTP client holds no resources worth freeing.
func (e *OllamaEmbedder) Close() error {
	return nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Available reports whether the server is reachable and the configured
// model is pulled.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug("ollama unreachable", "endpoint", e.endpoint, "error", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	for _, m := range tags.Models {
		if m.Name == e.model || strings.TrimSuffix(m.Name, ":latest") == e.model {
			return true
		}
	}
	e.logger.Debug("model not found on ollama server", "model", e.model)
	return false
}
