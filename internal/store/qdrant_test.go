package store

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		host    string
		port    int
		useTLS  bool
		wantErr bool
	}{
		{"host port", "localhost:6334", "localhost", 6334, false, false},
		{"http scheme", "http://qdrant.internal:6334", "qdrant.internal", 6334, false, false},
		{"https default port", "https://xyz.cloud.qdrant.io", "xyz.cloud.qdrant.io", 6334, true, false},
		{"https explicit port", "https://xyz.cloud.qdrant.io:6333", "xyz.cloud.qdrant.io", 6333, true, false},
		{"bare host", "localhost", "localhost", 6334, false, false},
		{"empty", "", "", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, useTLS, err := parseQdrantURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.useTLS, useTLS)
		})
	}
}

func TestPayloadValueRoundTrip(t *testing.T) {
	payload := map[string]any{
		"file_path":  "docs/a.md",
		"line_start": int64(3),
		"is_deleted": false,
		"score":      0.5,
		"imports":    []any{"import os", "import sys"},
	}

	got := payloadToMap(qdrant.NewValueMap(payload))
	assert.Equal(t, "docs/a.md", got["file_path"])
	assert.EqualValues(t, 3, got["line_start"])
	assert.Equal(t, false, got["is_deleted"])
	assert.Equal(t, 0.5, got["score"])
	assert.Equal(t, []any{"import os", "import sys"}, got["imports"])
}

func TestBuildFilterDeletionStates(t *testing.T) {
	s := &QdrantStore{}

	// Default excludes deleted points.
	f := s.buildFilter(nil)
	require.NotNil(t, f)
	require.Len(t, f.Must, 1)

	// Opting in drops the condition entirely.
	assert.Nil(t, s.buildFilter(&Filter{IncludeDeleted: true}))

	// Field filters stack with the deletion condition.
	f = s.buildFilter(&Filter{FilePath: "docs/a.md", ContentType: "code"})
	require.NotNil(t, f)
	assert.Len(t, f.Must, 3)
}
