package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragmcp/internal/errors"
)

func newFakeOllama(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OllamaEmbedder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	e := NewOllamaEmbedder(
		WithEndpoint(srv.URL),
		WithModel("nomic-embed-text"),
		WithHTTPClient(srv.Client()),
	)
	return srv, e
}

func embedHandler(t *testing.T, dims int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vectors := make([][]float32, len(req.Input))
		for i := range req.Input {
			v := make([]float32, dims)
			v[i%dims] = 2.0 // not unit length; client must normalize
			vectors[i] = v
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: vectors})
	}
}

func TestOllamaEmbedOrderAndNormalization(t *testing.T) {
	_, e := newFakeOllama(t, embedHandler(t, 4))

	vectors, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	// Vector i has its single component at index i, scaled to unit length.
	for i, v := range vectors {
		require.Len(t, v, 4)
		assert.InDelta(t, 1.0, v[i], 1e-6)
	}
}

func TestOllamaEmbedBatching(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len(req.Input), 2)
		vectors := make([][]float32, len(req.Input))
		for i := range vectors {
			vectors[i] = []float32{1, 0}
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: vectors})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(WithEndpoint(srv.URL), WithBatchSize(2), WithHTTPClient(srv.Client()))
	vectors, err := e.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vectors, 5)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestOllamaEmptyInputsGetZeroVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// Only the non-empty text reaches the server.
		assert.Equal(t, []string{"hello"}, req.Input)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0, 3}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	vectors, err := e.Embed(context.Background(), []string{"", "hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, make([]float32, 2), vectors[0])
	assert.InDelta(t, 1.0, vectors[1][1], 1e-6)
}

func TestOllamaRetriesOnceThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	_, err := e.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeEmbedFailed, errors.CodeOf(err))
	// One attempt plus one retry.
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOllamaRecoversOnRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 0}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	vectors, err := e.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
}

func TestOllamaContextCancellation(t *testing.T) {
	_, e := newFakeOllama(t, embedHandler(t, 4))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Embed(ctx, []string{"x"})
	assert.Error(t, err)
}

func TestOllamaAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "nomic-embed-text:latest"}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(WithEndpoint(srv.URL), WithModel("nomic-embed-text"), WithHTTPClient(srv.Client()))
	assert.True(t, e.Available(context.Background()))

	missing := NewOllamaEmbedder(WithEndpoint(srv.URL), WithModel("other-model"), WithHTTPClient(srv.Client()))
	assert.False(t, missing.Available(context.Background()))
}

func TestOllamaAvailableUnreachable(t *testing.T) {
	e := NewOllamaEmbedder(WithEndpoint("http://127.0.0.1:1"))
	assert.False(t, e.Available(context.Background()))
}

func TestOllamaKnownDimensions(t *testing.T) {
	e := NewOllamaEmbedder(WithModel("nomic-embed-text"))
	assert.Equal(t, 768, e.Dimensions())
	assert.Equal(t, "nomic-embed-text", e.ModelID())
}
