package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// BM25Backend selects the lexical index implementation.
type BM25Backend string

const (
	// BM25BackendSQLite is the default: FTS5 with WAL mode, safe for
	// concurrent multi-process access.
	BM25BackendSQLite BM25Backend = "sqlite"

	// BM25BackendBleve uses Bleve v2. BoltDB's exclusive lock makes it
	// single-process.
	BM25BackendBleve BM25Backend = "bleve"
)

// NewBM25Index creates a lexical index under dataDir using the given
// backend ("" defaults to sqlite). An empty dataDir gives an in-memory
// index for tests.
func NewBM25Index(dataDir string, config BM25Config, backend string) (BM25Index, error) {
	switch BM25Backend(backend) {
	case BM25BackendSQLite, "":
		var path string
		if dataDir != "" {
			path = filepath.Join(dataDir, "bm25.db")
		}
		return NewSQLiteBM25Index(path, config)

	case BM25BackendBleve:
		var path string
		if dataDir != "" {
			path = filepath.Join(dataDir, "bm25.bleve")
		}
		return NewBleveBM25Index(path, config)

	default:
		return nil, fmt.Errorf("unknown bm25 backend: %s (valid: sqlite, bleve)", backend)
	}
}

// DetectBM25Backend reports which backend an existing data dir holds,
// or "" when none exists.
func DetectBM25Backend(dataDir string) BM25Backend {
	if info, err := os.Stat(filepath.Join(dataDir, "bm25.db")); err == nil && !info.IsDir() {
		return BM25BackendSQLite
	}
	if info, err := os.Stat(filepath.Join(dataDir, "bm25.bleve")); err == nil && info.IsDir() {
		return BM25BackendBleve
	}
	return ""
}

// BM25Paths lists the sidecar files a `clean` run removes.
func BM25Paths(dataDir string) []string {
	return []string{
		filepath.Join(dataDir, "bm25.db"),
		filepath.Join(dataDir, "bm25.db-wal"),
		filepath.Join(dataDir, "bm25.db-shm"),
		filepath.Join(dataDir, "bm25.bleve"),
	}
}
