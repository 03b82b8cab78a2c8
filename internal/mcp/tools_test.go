package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragmcp/internal/config"
	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/index"
	"github.com/Aman-CERP/ragmcp/internal/search"
	"github.com/Aman-CERP/ragmcp/internal/store"
)

func newTestServer(t *testing.T, root string) *Server {
	t.Helper()

	cfg := config.New()
	cfg.ProjectRoot = root
	cfg.LocalQdrant = &config.StoreConfig{Collection: "local"}
	cfg.LocalDocs = []string{"docs/**/*.md"}
	cfg.CodePaths = []string{"src/**/*.py"}

	local, err := store.NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	bm25, err := store.NewSQLiteBM25Index("", store.DefaultBM25Config())
	require.NoError(t, err)
	t.Cleanup(func() { bm25.Close() })

	embedder := embed.NewStaticEmbedder()
	require.NoError(t, local.EnsureCollection(context.Background(), "local", embedder.Dimensions(), store.DefaultIndexedKeys))

	retriever, err := search.NewRetriever(search.RetrieverOptions{
		Collections: []search.Collection{{Source: search.SourceLocal, Store: local}},
		BM25:        bm25,
		Embedder:    embedder,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	engine := search.NewEngine(retriever, &search.NoOpReranker{}, 10, testLogger())

	coord, err := index.NewCoordinator(index.CoordinatorOptions{
		Config:   cfg,
		Local:    local,
		BM25:     bm25,
		Embedder: embedder,
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	s, err := NewServer(ServerOptions{
		Config:      cfg,
		Engine:      engine,
		Coordinator: coord,
		Local:       local,
		BM25:        bm25,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	return s
}

func testVector() []float32 {
	v := make([]float32, embed.StaticDimensions)
	v[0] = 1
	return v
}

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const manualDoc = "# Setup\n\nInstall the qdrant connector first.\n\n# Teardown\n\nRemove the qdrant connector last.\n"

func addManual(t *testing.T, s *Server) {
	t.Helper()
	_, env, err := s.handleAddDocument(context.Background(), nil, DocumentInput{
		FilePath: "docs/manual.md",
		Content:  manualDoc,
	})
	require.NoError(t, err)
	require.True(t, env.Success, "add_document failed: %+v", env.Errors)
}

func TestSearchToolValidatesQuery(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	_, env, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "   "})
	require.NoError(t, err)
	assert.False(t, env.Success)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, errors.CodeValidation, env.Errors[0].Code)
}

func TestSearchToolReturnsIndexedChunks(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	addManual(t, s)

	_, env, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "qdrant connector"})
	require.NoError(t, err)
	require.True(t, env.Success)
	data := env.Data.(SearchData)
	require.NotEmpty(t, data.Chunks)
	assert.Equal(t, "docs/manual.md", data.Chunks[0].FilePath)
	assert.NotEmpty(t, data.Chunks[0].Content)
	assert.Equal(t, search.SourceLocal, data.Chunks[0].Source)

	// Ids cross the wire as strings.
	_, err = parseID(data.Chunks[0].ID)
	assert.NoError(t, err)
}

func TestSearchToolEmptyIndexIsSuccess(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	_, env, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "anything at all"})
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Zero(t, env.Metadata.Count)
}

func TestAskToolSynthesizesAnswer(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	addManual(t, s)

	_, env, err := s.handleAsk(context.Background(), nil, AskInput{Question: "how does the qdrant connector setup work"})
	require.NoError(t, err)
	require.True(t, env.Success)
	data := env.Data.(AnswerData)
	assert.NotEmpty(t, data.Answer)
	assert.NotEmpty(t, data.Intent)
}

func TestExplainForcesExplanationIntent(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	addManual(t, s)

	// Phrased as an enumeration query on purpose.
	_, env, err := s.handleExplain(context.Background(), nil, ExplainInput{Topic: "list all connector steps"})
	require.NoError(t, err)
	require.True(t, env.Success)
	data := env.Data.(AnswerData)
	assert.Equal(t, string(search.IntentExplanation), data.Intent)
}

func TestAddAndGetPoints(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	_, env, err := s.handleAddPoints(context.Background(), nil, PointsInput{Points: []PointInput{
		{ID: "42", Vector: testVector(), Payload: map[string]any{"file_path": "ext/a.md", "content": "external chunk", "is_deleted": false}},
	}})
	require.NoError(t, err)
	require.True(t, env.Success, "add_points failed: %+v", env.Errors)
	assert.Equal(t, []string{"42"}, env.Data.(UpsertData).IDs)

	_, env, err = s.handleGetPoints(context.Background(), nil, GetPointsInput{IDs: []string{"42"}, WithVectors: true})
	require.NoError(t, err)
	require.True(t, env.Success)
	points := env.Data.(PointsData).Points
	require.Len(t, points, 1)
	assert.Equal(t, "42", points[0].ID)
	assert.Len(t, points[0].Vector, embed.StaticDimensions)
}

func TestGetPointsMissReportsPerID(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	_, env, err := s.handleGetPoints(context.Background(), nil, GetPointsInput{IDs: []string{"1234567890123456700"}})
	require.NoError(t, err)
	assert.False(t, env.Success)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, errors.CodePointNotFound, env.Errors[0].Code)

	var hinted bool
	for _, sug := range env.Errors[0].Suggestions {
		if sug == precisionHint("1234567890123456700") {
			hinted = true
		}
	}
	assert.True(t, hinted, "expected the string-id precision hint")
}

func TestAddPointsPartialBatch(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	_, env, err := s.handleAddPoints(context.Background(), nil, PointsInput{Points: []PointInput{
		{ID: "abc", Vector: testVector()},
		{ID: "7", Vector: testVector(), Payload: map[string]any{"file_path": "ext/b.md"}},
	}})
	require.NoError(t, err)
	assert.False(t, env.Success)
	assert.Equal(t, []string{"7"}, env.Data.(UpsertData).IDs)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, errors.CodeValidation, env.Errors[0].Code)
}

func TestAddPointsBatchLimit(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	points := make([]PointInput, store.MaxBatchSize+1)
	for i := range points {
		points[i] = PointInput{ID: formatID(uint64(i + 1)), Vector: testVector()}
	}
	_, env, err := s.handleAddPoints(context.Background(), nil, PointsInput{Points: points})
	require.NoError(t, err)
	assert.False(t, env.Success)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, errors.CodeBatchLimitExceeded, env.Errors[0].Code)
}

func TestDeletePointsDryRunAndSoftDefault(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	addManual(t, s)

	_, env, err := s.handleQueryPoints(context.Background(), nil, QueryPointsInput{
		Filter: FilterInput{FilePath: "docs/manual.md"},
	})
	require.NoError(t, err)
	require.True(t, env.Success)
	stored := env.Data.(QueryPointsData).Points
	require.NotEmpty(t, stored)
	ids := make([]string, len(stored))
	for i, p := range stored {
		ids[i] = p.ID
	}

	_, env, err = s.handleDeletePoints(context.Background(), nil, DeletePointsInput{IDs: ids, DryRun: true})
	require.NoError(t, err)
	require.True(t, env.Success)
	assert.Equal(t, len(ids), env.Data.(DeleteData).WouldDelete)

	// Dry run left everything in place.
	_, env, err = s.handleQueryPoints(context.Background(), nil, QueryPointsInput{
		Filter: FilterInput{FilePath: "docs/manual.md"},
	})
	require.NoError(t, err)
	assert.Len(t, env.Data.(QueryPointsData).Points, len(ids))

	// Default delete is soft: gone from active scrolls, visible via deleted_only.
	_, env, err = s.handleDeletePoints(context.Background(), nil, DeletePointsInput{IDs: ids})
	require.NoError(t, err)
	require.True(t, env.Success)
	assert.Equal(t, len(ids), env.Data.(DeleteData).Deleted)

	_, env, err = s.handleQueryPoints(context.Background(), nil, QueryPointsInput{
		Filter: FilterInput{FilePath: "docs/manual.md"},
	})
	require.NoError(t, err)
	assert.Empty(t, env.Data.(QueryPointsData).Points)

	_, env, err = s.handleQueryPoints(context.Background(), nil, QueryPointsInput{
		Filter: FilterInput{FilePath: "docs/manual.md", DeletedOnly: true},
	})
	require.NoError(t, err)
	assert.Len(t, env.Data.(QueryPointsData).Points, len(ids))
}

func TestDeletePointsHard(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	_, env, err := s.handleAddPoints(context.Background(), nil, PointsInput{Points: []PointInput{
		{ID: "9", Vector: testVector(), Payload: map[string]any{"file_path": "ext/c.md"}},
	}})
	require.NoError(t, err)
	require.True(t, env.Success)

	soft := false
	_, env, err = s.handleDeletePoints(context.Background(), nil, DeletePointsInput{IDs: []string{"9"}, SoftDelete: &soft})
	require.NoError(t, err)
	require.True(t, env.Success)

	_, env, err = s.handleQueryPoints(context.Background(), nil, QueryPointsInput{
		Filter: FilterInput{FilePath: "ext/c.md", IncludeDeleted: true},
	})
	require.NoError(t, err)
	assert.Empty(t, env.Data.(QueryPointsData).Points)
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	addManual(t, s)

	_, env, err := s.handleGetDocument(context.Background(), nil, GetDocumentInput{FilePath: "docs/manual.md"})
	require.NoError(t, err)
	require.True(t, env.Success)
	chunks := env.Data.(PointsChunksData).Chunks
	require.Len(t, chunks, 2)
	assert.Less(t, chunks[0].LineStart, chunks[1].LineStart)
	assert.Equal(t, "Setup", chunks[0].Section)

	// Update with one changed section re-embeds only that section.
	_, env, err = s.handleUpdateDocument(context.Background(), nil, DocumentInput{
		FilePath: "docs/manual.md",
		Content:  "# Setup\n\nInstall the qdrant connector first.\n\n# Teardown\n\nRemove it gently.\n",
	})
	require.NoError(t, err)
	require.True(t, env.Success)
	summary := env.Data.(*index.Summary)
	assert.Equal(t, 1, summary.Upserted)
	assert.Equal(t, 1, summary.Skipped)

	_, env, err = s.handleDeleteDocument(context.Background(), nil, DeleteDocumentInput{FilePath: "docs/manual.md"})
	require.NoError(t, err)
	require.True(t, env.Success)
	assert.Equal(t, 2, env.Data.(DeleteData).Deleted)

	_, env, err = s.handleGetDocument(context.Background(), nil, GetDocumentInput{FilePath: "docs/manual.md"})
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Zero(t, env.Metadata.Count)
}

func TestCollectionStats(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	addManual(t, s)

	_, env, err := s.handleCollectionStats(context.Background(), nil, EmptyInput{})
	require.NoError(t, err)
	require.True(t, env.Success)
	data := env.Data.(StatsData)
	require.Contains(t, data.Collections, "local")
	assert.EqualValues(t, 2, data.Collections["local"].Active)
	assert.Equal(t, 2, data.BM25Docs)
}

func TestIndexRepositoryTool(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)
	writeProjectFile(t, root, "docs/a.md", "# A\n\nalpha indexing target\n")

	_, env, err := s.handleIndexRepository(context.Background(), nil, IndexRepositoryInput{})
	require.NoError(t, err)
	require.True(t, env.Success, "index_repository failed: %+v", env.Errors)
	summary := env.Data.(*index.Summary)
	assert.Equal(t, 1, summary.FilesIndexed)

	_, env, err = s.handleIndexRepository(context.Background(), nil, IndexRepositoryInput{DocsOnly: true, CodeOnly: true})
	require.NoError(t, err)
	assert.False(t, env.Success)
	assert.Equal(t, errors.CodeValidation, env.Errors[0].Code)
}

func TestGetManifestAndSchemaTools(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	_, env, err := s.handleGetManifest(context.Background(), nil, EmptyInput{})
	require.NoError(t, err)
	require.True(t, env.Success)
	assert.Len(t, env.Data.(ManifestData).Tools, len(toolSchemas))

	_, env, err = s.handleGetToolSchema(context.Background(), nil, ToolSchemaInput{Name: "search"})
	require.NoError(t, err)
	require.True(t, env.Success)
	assert.Equal(t, "search", env.Data.(ToolSchema).Name)

	_, env, err = s.handleGetToolSchema(context.Background(), nil, ToolSchemaInput{Name: "grep"})
	require.NoError(t, err)
	assert.False(t, env.Success)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, errors.CodeValidation, env.Errors[0].Code)
	assert.Contains(t, env.Errors[0].Suggestions, "search")
}
