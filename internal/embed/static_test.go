package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticDeterministic(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	first, err := e.Embed(context.Background(), []string{"parse the config file"})
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), []string{"parse the config file"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStaticUnitLength(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vectors, err := e.Embed(context.Background(), []string{"func LoadConfig(path string) error"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	require.Len(t, vectors[0], StaticDimensions)

	var sum float64
	for _, v := range vectors[0] {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestStaticEmptyTextZeroVector(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vectors, err := e.Embed(context.Background(), []string{"", "   \n"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	for _, vec := range vectors {
		for _, v := range vec {
			assert.Zero(t, v)
		}
	}
}

func TestStaticNFCNormalization(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	// "é" precomposed vs combining sequence must embed identically.
	vectors, err := e.Embed(context.Background(), []string{"café", "café"})
	require.NoError(t, err)
	assert.Equal(t, vectors[0], vectors[1])
}

func TestStaticDistinctTextsDiffer(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vectors, err := e.Embed(context.Background(), []string{
		"database connection pooling",
		"render the navigation sidebar",
	})
	require.NoError(t, err)
	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestStaticClosed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestSplitCodeToken(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"getUserName", []string{"get", "User", "Name"}},
		{"parse_json_file", []string{"parse", "json", "file"}},
		{"HTTPServer", []string{"HTTP", "Server"}},
		{"plain", []string{"plain"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitCodeToken(tt.in), tt.in)
	}
}

func TestExtractNgrams(t *testing.T) {
	assert.Equal(t, []string{"abc", "bcd"}, extractNgrams("abcd", 3))
	assert.Empty(t, extractNgrams("ab", 3))
}
