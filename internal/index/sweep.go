package index

import (
	"context"
	"sort"

	"github.com/Aman-CERP/ragmcp/internal/store"
)

// sweepOrphans finds stored paths whose file no longer matches any
// configured glob and soft-deletes their chunks when prune is set. The
// default dry run only counts. Points without a file_path payload are
// skipped with a warning, never treated as orphaned.
func (c *Coordinator) sweepOrphans(ctx context.Context, t target, live map[string]bool, prune bool, summary *Summary) error {
	orphans := make(map[string][]uint64)
	var cursor uint64
	for {
		points, next, err := t.store.Scroll(ctx, nil, cursor, store.MaxBatchSize)
		if err != nil {
			return err
		}
		for _, p := range points {
			path, _ := p.Payload["file_path"].(string)
			if path == "" {
				c.logger.Warn("stored point has no file_path, skipping", "id", p.ID, "source", t.source)
				continue
			}
			if !live[path] {
				orphans[path] = append(orphans[path], p.ID)
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	paths := make([]string, 0, len(orphans))
	for path := range orphans {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids := orphans[path]
		summary.OrphanPaths++

		if !prune {
			summary.OrphanChunks += len(ids)
			continue
		}

		n, err := t.store.SoftDelete(ctx, &store.Filter{FilePath: path})
		if err != nil {
			// The filter path failed; flip the points one batch at a
			// time instead of abandoning the sweep.
			c.logger.Warn("orphan soft delete by filter failed, retrying per point",
				"path", path, "source", t.source, "error", err)
			n, err = c.setDeletedByIDs(ctx, t.store, ids, true)
			if err != nil {
				return err
			}
		} else {
			c.mirrorDelete(ctx, ids)
		}
		summary.OrphanChunks += n
		c.logger.Info("orphaned file pruned", "path", path, "source", t.source, "chunks", n)
	}
	return nil
}
