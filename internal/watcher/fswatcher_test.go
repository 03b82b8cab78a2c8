package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string, opts Options) *FSWatcher {
	t.Helper()
	if opts.DebounceWindow == 0 {
		opts.DebounceWindow = 20 * time.Millisecond
	}
	w, err := NewFSWatcher(opts, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx, root) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	// Give the recursive registration a moment to settle.
	time.Sleep(100 * time.Millisecond)
	return w
}

func waitForBatch(t *testing.T, w *FSWatcher) []FileEvent {
	t.Helper()
	select {
	case batch := <-w.Events():
		return batch
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watcher batch")
		return nil
	}
}

func TestFSWatcherReportsCreatedFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	w := startWatcher(t, root, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.md"), []byte("# A\n"), 0o644))

	batch := waitForBatch(t, w)
	require.NotEmpty(t, batch)
	var found bool
	for _, ev := range batch {
		if ev.Path == "docs/a.md" {
			found = true
			assert.Contains(t, []Operation{OpCreate, OpModify}, ev.Operation)
		}
	}
	assert.True(t, found, "expected an event for docs/a.md, got %+v", batch)
}

func TestFSWatcherIgnoresConfiguredPatterns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	w := startWatcher(t, root, Options{IgnorePatterns: []string{"*.log"}})

	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "noise.log"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "real.md"), []byte("# R\n"), 0o644))

	batch := waitForBatch(t, w)
	for _, ev := range batch {
		assert.NotEqual(t, "docs/noise.log", ev.Path)
	}
}

func TestFSWatcherEmitsGitignoreChange(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("generated/\n"), 0o644))

	batch := waitForBatch(t, w)
	require.NotEmpty(t, batch)
	var found bool
	for _, ev := range batch {
		if ev.Operation == OpGitignoreChange {
			found = true
		}
	}
	assert.True(t, found, "expected a gitignore_change event, got %+v", batch)
}

func TestFSWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, Options{})

	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "guides"), 0o755))
	// Drain the directory-creation batch before writing inside it.
	waitForBatch(t, w)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "guides", "g.md"), []byte("# G\n"), 0o644))

	batch := waitForBatch(t, w)
	var found bool
	for _, ev := range batch {
		if ev.Path == "docs/guides/g.md" {
			found = true
		}
	}
	assert.True(t, found, "expected an event for docs/guides/g.md, got %+v", batch)
}

func TestFSWatcherStopClosesChannels(t *testing.T) {
	w, err := NewFSWatcher(Options{}, testLogger())
	require.NoError(t, err)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, open := <-w.Events()
	assert.False(t, open)
}
