package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of cached vectors.
const DefaultCacheSize = 10000

// CachedEmbedder wraps another embedder with an LRU cache keyed by
// model and text. Repeated indexing of unchanged chunks skips the
// network entirely.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

// NewCachedEmbedder wraps inner with a cache of the given size. A
// non-positive size falls back to DefaultCacheSize.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embed cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

var _ Embedder = (*CachedEmbedder)(nil)

// cacheKey hashes model and text together so switching models never
// serves stale vectors.
func (e *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(e.inner.ModelID()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Embed serves cached vectors where possible and embeds only the
// misses, preserving input order.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prepared := prepare(texts)

	out := make([][]float32, len(prepared))
	var missTexts []string
	var missIdx []int

	for i, text := range prepared {
		if v, ok := e.cache.Get(e.cacheKey(text)); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	e.mu.Lock()
	e.hits += uint64(len(prepared) - len(missTexts))
	e.misses += uint64(len(missTexts))
	e.mu.Unlock()

	if len(missTexts) > 0 {
		vectors, err := e.inner.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missTexts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(missTexts))
		}
		for j, v := range vectors {
			out[missIdx[j]] = v
			e.cache.Add(e.cacheKey(missTexts[j]), v)
		}
	}
	return out, nil
}

// Stats returns cache hit and miss counts.
func (e *CachedEmbedder) Stats() (hits, misses uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits, e.misses
}

// Dimensions delegates to the wrapped embedder.
func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// ModelID delegates to the wrapped embedder.
func (e *CachedEmbedder) ModelID() string {
	return e.inner.ModelID()
}

// Close purges the cache and closes the wrapped embedder.
func (e *CachedEmbedder) Close() error {
	e.cache.Purge()
	return e.inner.Close()
}
