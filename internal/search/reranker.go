package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// MaxRerankPool caps how many candidates go to the reranker. Pools
// beyond this keep their hybrid-score order and the tail is cut before
// scoring.
const MaxRerankPool = 100

// DefaultRerankTopK is how many results reranking keeps by default.
const DefaultRerankTopK = 10

// RerankResult is one scored document from the reranker.
type RerankResult struct {
	// Index is the position in the input documents slice.
	Index int
	// Score is the relevance score, higher is better.
	Score float64
}

// Reranker rescores documents against a query with a cross-encoder.
// Cross-encoders see the query and document together, which beats the
// bi-encoder similarity used for retrieval, at real latency cost.
type Reranker interface {
	// Rerank scores documents against the query and returns results
	// sorted by score descending, truncated to topK when positive.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available reports whether the backing service is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// NoOpReranker preserves the incoming order. Used when reranking is
// disabled in the config or the rerank service is down at startup.
type NoOpReranker struct{}

// Rerank returns documents in their original order with monotonically
// decreasing scores (1.0, 0.99, 0.98, ...).
func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i := range documents {
		results[i] = RerankResult{Index: i, Score: 1.0 - float64(i)*0.01}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Available always reports true.
func (n *NoOpReranker) Available(_ context.Context) bool { return true }

// Close is a no-op.
func (n *NoOpReranker) Close() error { return nil }

var _ Reranker = (*NoOpReranker)(nil)

// HTTPReranker talks to the /rerank endpoint of the model server.
type HTTPReranker struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *slog.Logger
}

// HTTPRerankerOption configures an HTTPReranker.
type HTTPRerankerOption func(*HTTPReranker)

// WithRerankerHTTPClient replaces the HTTP client, mainly for tests.
func WithRerankerHTTPClient(c *http.Client) HTTPRerankerOption {
	return func(r *HTTPReranker) { r.client = c }
}

// WithRerankerLogger sets the logger.
func WithRerankerLogger(l *slog.Logger) HTTPRerankerOption {
	return func(r *HTTPReranker) { r.logger = l }
}

// NewHTTPReranker builds a reranker against the model server base URL.
func NewHTTPReranker(endpoint, model string, opts ...HTTPRerankerOption) *HTTPReranker {
	r := &HTTPReranker{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Rerank posts the query/document pairs and decodes the scored
// results. Failures surface to the caller; they fail one request, not
// the server.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return []RerankResult{}, nil
	}
	if len(documents) > MaxRerankPool {
		documents = documents[:MaxRerankPool]
	}

	body, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: documents,
		Model:     r.model,
		TopK:      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]RerankResult, 0, len(decoded.Results))
	for _, item := range decoded.Results {
		if item.Index < 0 || item.Index >= len(documents) {
			continue
		}
		results = append(results, RerankResult{Index: item.Index, Score: item.Score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Available probes the model server with a short timeout. Any HTTP
// response counts; only connection-level failures mean down.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, r.endpoint+"/", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Close drops idle connections.
func (r *HTTPReranker) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

var _ Reranker = (*HTTPReranker)(nil)

// SelectReranker applies the startup policy: reranking disabled or no
// model configured means NoOp; a configured but unreachable service
// logs a warning and bypasses rather than failing startup.
func SelectReranker(ctx context.Context, enabled bool, endpoint, model string, logger *slog.Logger) Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	if !enabled || model == "" {
		return &NoOpReranker{}
	}
	hr := NewHTTPReranker(endpoint, model, WithRerankerLogger(logger))
	if !hr.Available(ctx) {
		logger.Warn("reranker unavailable at startup, bypassing", "endpoint", endpoint, "model", model)
		_ = hr.Close()
		return &NoOpReranker{}
	}
	logger.Info("reranker ready", "endpoint", endpoint, "model", model)
	return hr
}
