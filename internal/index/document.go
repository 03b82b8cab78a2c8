package index

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/ragmcp/internal/chunk"
	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/scanner"
	"github.com/Aman-CERP/ragmcp/internal/store"
)

// route is where one path's chunks belong.
type route struct {
	source     string
	store      store.VectorStore
	collection string
	kind       string
}

// routeFor resolves a relative path against the configured globs: cloud
// docs and code go to the cloud store, local docs to the local store,
// code falling back to the local store when no cloud is configured.
// Paths matching nothing are indexed as docs into the primary store.
func (c *Coordinator) routeFor(rel string) route {
	cloud := route{source: "cloud", store: c.cloud, kind: scanner.KindDoc}
	if c.cloud != nil {
		cloud.collection = c.cfg.CloudQdrant.Collection
	}
	local := route{source: "local", store: c.local, kind: scanner.KindDoc}
	if c.local != nil {
		local.collection = c.cfg.LocalQdrant.Collection
	}

	codeRoute := cloud
	if c.cloud == nil {
		codeRoute = local
	}
	primary := cloud
	if c.cloud == nil {
		primary = local
	}

	switch {
	case c.cloud != nil && scanner.MatchAny(c.cfg.CloudDocs, rel):
		return cloud
	case c.local != nil && scanner.MatchAny(c.cfg.LocalDocs, rel):
		return local
	case scanner.MatchAny(c.cfg.CodePaths, rel):
		codeRoute.kind = scanner.KindCode
		return codeRoute
	default:
		return primary
	}
}

// IndexDocument chunks, embeds, and reconciles one document supplied
// as content, without touching the filesystem. Backs the add_document
// and update_document tools.
func (c *Coordinator) IndexDocument(ctx context.Context, filePath string, content []byte) (*Summary, error) {
	if filePath == "" {
		return nil, errors.Validation("file_path is required")
	}
	rel := filepath.ToSlash(filepath.Clean(filePath))

	r := c.routeFor(rel)
	if err := r.store.EnsureCollection(ctx, r.collection, c.embedder.Dimensions(), store.DefaultIndexedKeys); err != nil {
		return nil, err
	}

	chunks, err := c.chunkContent(ctx, rel, content, r.kind)
	if err != nil {
		return nil, err
	}

	res, err := c.applyDiff(ctx, r.store, rel, chunks)
	if err != nil {
		return nil, err
	}
	return &Summary{
		FilesIndexed: 1,
		Upserted:     res.upserted,
		Skipped:      res.skipped,
		SoftDeleted:  res.softDeleted,
		Recovered:    res.recovered,
	}, nil
}

// IndexPath re-indexes one on-disk file. Used by the file watcher.
func (c *Coordinator) IndexPath(ctx context.Context, rel string) (*Summary, error) {
	abs := filepath.Join(c.cfg.ProjectRoot, filepath.FromSlash(rel))
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return c.IndexDocument(ctx, rel, content)
}

// RemoveDocument deletes every chunk of one path across the configured
// stores. Soft deletion flags the points; soft=false removes them
// physically. Returns the number of chunks affected.
func (c *Coordinator) RemoveDocument(ctx context.Context, filePath string, soft bool) (int, error) {
	if filePath == "" {
		return 0, errors.Validation("file_path is required")
	}
	rel := filepath.ToSlash(filepath.Clean(filePath))

	total := 0
	for _, st := range c.stores() {
		ids, err := c.chunkIDs(ctx, st, rel)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			continue
		}

		if soft {
			n, err := st.SoftDelete(ctx, &store.Filter{FilePath: rel})
			if err != nil {
				return total, err
			}
			total += n
		} else {
			for start := 0; start < len(ids); start += store.MaxBatchSize {
				if err := st.DeleteByIDs(ctx, ids[start:min(start+store.MaxBatchSize, len(ids))]); err != nil {
					return total, err
				}
			}
			total += len(ids)
		}
		c.mirrorDelete(ctx, ids)
	}
	return total, nil
}

// chunkContent dispatches to the doc or code chunker.
func (c *Coordinator) chunkContent(ctx context.Context, rel string, content []byte, kind string) ([]*chunk.Chunk, error) {
	input := &chunk.FileInput{Path: rel, Content: content, Language: scanner.DetectLanguage(rel)}
	if kind == scanner.KindCode {
		return c.codeChunker.Chunk(ctx, input)
	}
	input.DocType = c.cfg.DocTypeFor(rel)
	return c.docChunker.Chunk(ctx, input)
}

// chunkIDs lists the ids of every active chunk of one path.
func (c *Coordinator) chunkIDs(ctx context.Context, st store.VectorStore, rel string) ([]uint64, error) {
	var ids []uint64
	filter := &store.Filter{FilePath: rel}
	var cursor uint64
	for {
		points, next, err := st.Scroll(ctx, filter, cursor, store.MaxBatchSize)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			ids = append(ids, p.ID)
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}

// InvalidateGitignoreCache drops the scanner's cached .gitignore
// matchers. The watcher calls it after a .gitignore edit so the next
// run sees the new patterns.
func (c *Coordinator) InvalidateGitignoreCache() {
	c.scanner.InvalidateGitignoreCache()
}

// stores lists the configured vector stores, cloud first.
func (c *Coordinator) stores() []store.VectorStore {
	var out []store.VectorStore
	if c.cloud != nil {
		out = append(out, c.cloud)
	}
	if c.local != nil {
		out = append(out, c.local)
	}
	return out
}
