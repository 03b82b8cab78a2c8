package watcher

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collectBatch(t *testing.T, d *debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
		return nil
	}
}

func TestDebouncerCoalescesCreateModify(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, testLogger())
	defer d.Stop()

	d.Add(FileEvent{Path: "docs/a.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "docs/a.md", Operation: OpModify})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncerCancelsCreateDelete(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, testLogger())
	defer d.Stop()

	d.Add(FileEvent{Path: "docs/a.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "docs/a.md", Operation: OpDelete})
	d.Add(FileEvent{Path: "docs/b.md", Operation: OpModify})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "docs/b.md", batch[0].Path)
}

func TestDebouncerDeleteCreateBecomesModify(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, testLogger())
	defer d.Stop()

	d.Add(FileEvent{Path: "docs/a.md", Operation: OpDelete})
	d.Add(FileEvent{Path: "docs/a.md", Operation: OpCreate})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncerModifyDeleteKeepsDelete(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, testLogger())
	defer d.Stop()

	d.Add(FileEvent{Path: "docs/a.md", Operation: OpModify})
	d.Add(FileEvent{Path: "docs/a.md", Operation: OpDelete})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpDelete, batch[0].Operation)
}

func TestDebouncerBatchesAcrossPaths(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, testLogger())
	defer d.Stop()

	d.Add(FileEvent{Path: "docs/a.md", Operation: OpModify})
	d.Add(FileEvent{Path: "docs/b.md", Operation: OpModify})
	d.Add(FileEvent{Path: "docs/c.md", Operation: OpCreate})

	batch := collectBatch(t, d)
	assert.Len(t, batch, 3)
}

func TestDebouncerStopIsIdempotent(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, testLogger())
	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "docs/a.md", Operation: OpModify})

	_, open := <-d.Output()
	assert.False(t, open)
}
