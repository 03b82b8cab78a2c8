package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragmcp/internal/config"
	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/store"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(root string) *config.Config {
	cfg := config.New()
	cfg.ProjectRoot = root
	cfg.LocalQdrant = &config.StoreConfig{Collection: "local"}
	cfg.LocalDocs = []string{"docs/**/*.md"}
	cfg.CodePaths = []string{"src/**/*.py"}
	return cfg
}

func newTestCoordinator(t *testing.T, cfg *config.Config) (*Coordinator, *store.LocalStore, store.BM25Index) {
	t.Helper()

	local, err := store.NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	bm25, err := store.NewSQLiteBM25Index("", store.DefaultBM25Config())
	require.NoError(t, err)
	t.Cleanup(func() { bm25.Close() })

	c, err := NewCoordinator(CoordinatorOptions{
		Config:   cfg,
		Local:    local,
		BM25:     bm25,
		Embedder: embed.NewStaticEmbedder(),
		Workers:  2,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return c, local, bm25
}

func activePaths(t *testing.T, st store.VectorStore) map[string]int {
	t.Helper()
	out := make(map[string]int)
	var cursor uint64
	for {
		points, next, err := st.Scroll(context.Background(), nil, cursor, store.MaxBatchSize)
		require.NoError(t, err)
		for _, p := range points {
			out[p.Payload["file_path"].(string)]++
		}
		if next == 0 {
			return out
		}
		cursor = next
	}
}

const twoSections = "# A\n\nalpha content\n\n# B\n\nbeta content\n"

func TestRunIndexesNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/a.md", twoSections)
	writeFile(t, root, "src/app.py", "def greet():\n    return 'hi'\n")

	c, local, bm25 := newTestCoordinator(t, testConfig(root))
	summary, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FilesScanned)
	assert.Equal(t, 2, summary.FilesIndexed)
	assert.Equal(t, 0, summary.FilesFailed)
	assert.GreaterOrEqual(t, summary.Upserted, 3) // two doc sections plus the code chunks
	assert.Zero(t, summary.SoftDeleted)

	byPath := activePaths(t, local)
	assert.Equal(t, 2, byPath["docs/a.md"])
	assert.Positive(t, byPath["src/app.py"])

	ids, err := bm25.AllIDs()
	require.NoError(t, err)
	assert.Len(t, ids, summary.Upserted)
}

func TestRunSecondPassSkipsUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/a.md", twoSections)

	c, _, _ := newTestCoordinator(t, testConfig(root))
	first, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Positive(t, first.Upserted)

	second, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Zero(t, second.Upserted)
	assert.Equal(t, first.Upserted, second.Skipped)
}

func TestRunSoftDeletesAndRecoversSections(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/a.md", twoSections)

	c, local, _ := newTestCoordinator(t, testConfig(root))
	_, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	// Section B vanishes; its chunk is flagged, not removed.
	writeFile(t, root, "docs/a.md", "# A\n\nalpha content\n")
	summary, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SoftDeleted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Upserted)

	deleted, _, err := local.Scroll(context.Background(),
		&store.Filter{FilePath: "docs/a.md", DeletedOnly: true}, 0, store.MaxBatchSize)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	// Section B comes back unchanged; the stored vector is reused.
	writeFile(t, root, "docs/a.md", twoSections)
	summary, err = c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Recovered)
	assert.Zero(t, summary.Upserted)
	assert.Equal(t, 2, activePaths(t, local)["docs/a.md"])
}

func TestRunListItemEditUpsertsOnlyListChunk(t *testing.T) {
	root := t.TempDir()
	const features = "# Title\n## Features\n1. Alpha\n2. Beta\n3. Gamma\n"
	writeFile(t, root, "docs/a.md", features)

	c, local, _ := newTestCoordinator(t, testConfig(root))
	_, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, activePaths(t, local)["docs/a.md"])

	writeFile(t, root, "docs/a.md", strings.Replace(features, "Beta", "Bravo", 1))
	summary, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Upserted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.SoftDeleted)
	assert.Equal(t, 2, activePaths(t, local)["docs/a.md"])
}

func TestRunOverwritesChangedChunksInPlace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/a.md", twoSections)

	c, local, _ := newTestCoordinator(t, testConfig(root))
	_, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	before := activePaths(t, local)["docs/a.md"]

	writeFile(t, root, "docs/a.md", "# A\n\nalpha content revised\n\n# B\n\nbeta content\n")
	summary, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Upserted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, before, activePaths(t, local)["docs/a.md"])
}

func TestRunOrphanSweep(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/a.md", "# A\n\nalpha\n")
	writeFile(t, root, "docs/b.md", "# B\n\nbeta\n")

	c, local, _ := newTestCoordinator(t, testConfig(root))
	_, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "docs", "b.md")))

	// Dry run reports but leaves the chunks active.
	summary, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OrphanPaths)
	assert.Equal(t, 1, summary.OrphanChunks)
	assert.False(t, summary.PruneApplied)
	assert.Equal(t, 1, activePaths(t, local)["docs/b.md"])

	summary, err = c.Run(context.Background(), RunOptions{Prune: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OrphanChunks)
	assert.True(t, summary.PruneApplied)
	assert.Zero(t, activePaths(t, local)["docs/b.md"])
}

func TestRunPartialGlobsSkipSweep(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/a.md", "# A\n\nalpha\n")
	writeFile(t, root, "src/app.py", "def f():\n    pass\n")

	c, _, _ := newTestCoordinator(t, testConfig(root))
	_, err := c.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	// A docs-only pass must not mistake unscanned code for orphans.
	summary, err := c.Run(context.Background(), RunOptions{DocsOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesScanned)
	assert.Zero(t, summary.OrphanPaths)
	assert.Zero(t, summary.SoftDeleted)
}

func TestRunRefusesConcurrentRuns(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	c, _, _ := newTestCoordinator(t, cfg)

	lock, err := acquireRunLock(cfg.DataDir())
	require.NoError(t, err)
	defer func() { _ = lock.Unlock() }()

	_, err = c.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another index run is in progress")
}

func TestRunReportsProgress(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/a.md", "# A\n\nalpha\n")
	writeFile(t, root, "docs/b.md", "# B\n\nbeta\n")

	c, _, _ := newTestCoordinator(t, testConfig(root))
	var seen []string
	_, err := c.Run(context.Background(), RunOptions{
		Progress: func(done, total int, path string) {
			assert.Equal(t, 2, total)
			seen = append(seen, path)
		},
	})
	require.NoError(t, err)
	assert.Len(t, seen, 2)
}
