// Package embed turns chunk text into vectors. One model serves both
// documentation and code so a collection holds a single dimension; the
// Ollama embedder is the production path, the static embedder covers
// offline runs and tests.
package embed

import (
	"context"
	"math"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Defaults for the HTTP embedder.
const (
	DefaultEndpoint  = "http://localhost:11434"
	DefaultModel     = "nomic-embed-text"
	DefaultBatchSize = 32
	DefaultTimeout   = 60 * time.Second

	// StaticDimensions is the dimension of the offline hash embedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings. Implementations preserve input
// order, normalize inputs to NFC, and L2-normalize every vector.
type Embedder interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed output dimension.
	Dimensions() int

	// ModelID identifies the model that produced the vectors. Stored
	// vectors are only comparable to queries embedded by the same model.
	ModelID() string

	// Close releases resources.
	Close() error
}

// prepare applies the input contract shared by all implementations:
// UTF-8 NFC normalization and trailing-whitespace trim.
func prepare(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.TrimRight(norm.NFC.String(t), " \t\r\n")
	}
	return out
}

// normalizeVector scales a vector to unit length. Zero vectors come
// back unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
