// Package store persists chunks: a Qdrant adapter for remote
// collections, an embedded HNSW+SQLite store for local ones, and a
// BM25 sidecar for the lexical retrieval leg.
package store

import (
	"context"
)

// MaxBatchSize is the hard cap on points per upsert or delete call.
const MaxBatchSize = 1000

// Point is one stored chunk: id, vector, and a flat JSON-typed payload.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search result.
type ScoredPoint struct {
	Point
	Score float32
}

// Filter selects points by exact payload match. A nil Filter matches
// all active points.
type Filter struct {
	// FilePath, Section, Language, ContentType match payload keys of
	// the same name when non-empty.
	FilePath    string
	Section     string
	Language    string
	ContentType string

	// IncludeDeleted lifts the default is_deleted=false condition.
	IncludeDeleted bool

	// DeletedOnly restricts to is_deleted=true (purge and recover paths).
	DeletedOnly bool
}

// CollectionStats splits the point count by deletion state.
type CollectionStats struct {
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Deleted int64 `json:"deleted"`
}

// VectorStore is the storage contract shared by the Qdrant adapter and
// the embedded local store. Searches and scrolls exclude soft-deleted
// points unless the filter opts in; ties break by id ascending.
type VectorStore interface {
	// EnsureCollection creates the collection and its payload indexes if
	// absent. Idempotent; DIMENSION_MISMATCH if it exists with another
	// dimension.
	EnsureCollection(ctx context.Context, name string, dims int, indexedKeys []string) error

	// Upsert inserts or overwrites points by id. At most MaxBatchSize
	// per call.
	Upsert(ctx context.Context, points []*Point) error

	// DeleteByIDs physically removes points.
	DeleteByIDs(ctx context.Context, ids []uint64) error

	// SoftDelete sets is_deleted=true on matching points and returns how
	// many changed.
	SoftDelete(ctx context.Context, f *Filter) (int, error)

	// Recover clears is_deleted on matching points and returns how many
	// changed.
	Recover(ctx context.Context, f *Filter) (int, error)

	// GetPoints fetches points by id. Missing ids are simply absent from
	// the result.
	GetPoints(ctx context.Context, ids []uint64, withVectors bool) ([]*Point, error)

	// Scroll pages through matching points in id order. cursor is the
	// last id of the previous page (0 starts); the returned cursor is 0
	// when exhausted.
	Scroll(ctx context.Context, f *Filter, cursor uint64, limit int) ([]*Point, uint64, error)

	// Search returns the k nearest active points by cosine similarity.
	Search(ctx context.Context, vector []float32, f *Filter, k int, withVectors bool) ([]*ScoredPoint, error)

	// Stats counts points split by deletion state.
	Stats(ctx context.Context) (*CollectionStats, error)

	Close() error
}

// DefaultIndexedKeys are the payload keys every collection indexes for
// exact-match filtering.
var DefaultIndexedKeys = []string{"file_path", "section", "language", "content_type", "is_deleted"}

// Document is a unit of text for the BM25 sidecar, keyed by chunk id.
type Document struct {
	ID      uint64
	Content string
}

// BM25Result is one lexical search hit.
type BM25Result struct {
	DocID        uint64
	Score        float64
	MatchedTerms []string
}

// BM25Stats describes the lexical index.
type BM25Stats struct {
	DocumentCount int
}

// BM25Index is the lexical retrieval leg. It is derived state: losing
// it degrades retrieval to vector-only, never correctness.
type BM25Index interface {
	// Index adds or replaces documents.
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, best first.
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents by id.
	Delete(ctx context.Context, ids []uint64) error

	// AllIDs returns every indexed id, for consistency checks.
	AllIDs() ([]uint64, error)

	Stats() *BM25Stats

	Close() error
}

// BM25Config tunes tokenization for the lexical index.
type BM25Config struct {
	// StopWords are filtered out during tokenization.
	StopWords []string

	// MinTokenLength is the minimum token length to index.
	MinTokenLength int
}

// DefaultBM25Config returns the standard code-aware configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords are programming keywords and filler identifiers
// that carry no retrieval signal.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}
