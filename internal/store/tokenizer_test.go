package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"camelCase", "getUserById", []string{"get", "user", "by", "id"}},
		{"snake_case", "parse_json_file", []string{"parse", "json", "file"}},
		{"acronym", "parseHTTPRequest", []string{"parse", "http", "request"}},
		{"short tokens dropped", "a b cd", []string{"cd"}},
		{"mixed punctuation", "store.Upsert(ctx, points)", []string{"store", "upsert", "ctx", "points"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeCode(tt.in, 2))
		})
	}
}

func TestFilterStopWords(t *testing.T) {
	stop := BuildStopWordMap([]string{"func", "return"})
	got := FilterStopWords([]string{"func", "upsert", "return", "points"}, stop)
	assert.Equal(t, []string{"upsert", "points"}, got)
}

func TestDocIDRoundTrip(t *testing.T) {
	id := uint64(5988746393514332613)
	parsed, err := parseDocID(formatDocID(id))
	assert.NoError(t, err)
	assert.Equal(t, id, parsed)
}
