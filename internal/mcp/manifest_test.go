package mcp

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewManifestLoadsEmbeddedBriefs(t *testing.T) {
	m, err := NewManifest(testLogger())
	require.NoError(t, err)

	briefs := m.Briefs()
	require.Len(t, briefs, len(toolSchemas))

	for _, b := range briefs {
		assert.NotEmpty(t, b.Brief, "tool %s has no brief", b.Name)
		assert.NotEmpty(t, b.Category, "tool %s has no category", b.Name)
		assert.GreaterOrEqual(t, len(b.UseCases), 2, "tool %s needs at least two use cases", b.Name)

		_, found := m.Schema(b.Name)
		assert.True(t, found, "brief %s has no registered schema", b.Name)
	}
}

func TestManifestSchemasCarryExamples(t *testing.T) {
	m, err := NewManifest(testLogger())
	require.NoError(t, err)

	for _, name := range m.KnownNames() {
		schema, found := m.Schema(name)
		require.True(t, found)
		assert.Equal(t, name, schema.Name)
		assert.NotEmpty(t, schema.Description)
		assert.NotEmpty(t, schema.InputSchema)
		assert.NotEmpty(t, schema.Examples, "tool %s has no examples", name)
		assert.LessOrEqual(t, len(schema.Examples), 4)
	}
}

func TestManifestUnknownTool(t *testing.T) {
	m, err := NewManifest(testLogger())
	require.NoError(t, err)

	_, found := m.Schema("grep")
	assert.False(t, found)
}

func TestKnownNamesSorted(t *testing.T) {
	m, err := NewManifest(testLogger())
	require.NoError(t, err)

	names := m.KnownNames()
	require.NotEmpty(t, names)
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "search")
	assert.Contains(t, names, "get_tool_schema")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 5, estimateTokens("12345678901234567890"))
}
