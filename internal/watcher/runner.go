package watcher

import (
	"context"
	"log/slog"
	"os"

	"github.com/Aman-CERP/ragmcp/internal/config"
	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/index"
	"github.com/Aman-CERP/ragmcp/internal/scanner"
)

// Runner connects the file watcher to the index coordinator: created
// and modified files re-index, deleted files soft-delete, and
// .gitignore edits trigger a full reconcile pass.
type Runner struct {
	cfg     *config.Config
	coord   *index.Coordinator
	watcher *FSWatcher
	logger  *slog.Logger
}

// NewRunner wires a watcher over the configured project root.
func NewRunner(cfg *config.Config, coord *index.Coordinator, logger *slog.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, errors.Validation("a config is required")
	}
	if coord == nil {
		return nil, errors.Validation("an index coordinator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := NewFSWatcher(Options{IgnorePatterns: cfg.ExcludePatterns}, logger)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, coord: coord, watcher: w, logger: logger}, nil
}

// Run watches until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	go r.consume(ctx)
	r.logger.Info("watch mode started", "root", r.cfg.ProjectRoot)

	err := r.watcher.Start(ctx, r.cfg.ProjectRoot)
	if err == context.Canceled {
		return nil
	}
	return err
}

func (r *Runner) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, open := <-r.watcher.Events():
			if !open {
				return
			}
			r.apply(ctx, batch)
		case err, open := <-r.watcher.Errors():
			if !open {
				return
			}
			r.logger.Warn("watcher error", "error", err)
		}
	}
}

// apply replays one debounced batch through the coordinator.
func (r *Runner) apply(ctx context.Context, batch []FileEvent) {
	reconcile := false
	for _, ev := range batch {
		if ev.Operation == OpGitignoreChange {
			reconcile = true
			continue
		}
		if ev.IsDir || !r.relevant(ev.Path) {
			continue
		}

		switch ev.Operation {
		case OpDelete, OpRename:
			r.remove(ctx, ev.Path)
		case OpCreate, OpModify:
			summary, err := r.coord.IndexPath(ctx, ev.Path)
			if os.IsNotExist(err) {
				// The file vanished between the event and the read.
				r.remove(ctx, ev.Path)
				continue
			}
			if err != nil {
				r.logger.Warn("re-indexing file failed", "path", ev.Path, "error", err)
				continue
			}
			r.logger.Debug("file re-indexed",
				"path", ev.Path,
				"upserted", summary.Upserted,
				"soft_deleted", summary.SoftDeleted,
				"recovered", summary.Recovered)
		}
	}

	if reconcile {
		r.coord.InvalidateGitignoreCache()
		if _, err := r.coord.Run(ctx, index.RunOptions{}); err != nil {
			r.logger.Warn("reconcile after .gitignore change failed", "error", err)
		}
	}
}

func (r *Runner) remove(ctx context.Context, path string) {
	n, err := r.coord.RemoveDocument(ctx, path, true)
	if err != nil {
		r.logger.Warn("soft-deleting removed file failed", "path", path, "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("removed file soft-deleted", "path", path, "chunks", n)
	}
}

// relevant reports whether a path falls under any configured glob set.
func (r *Runner) relevant(rel string) bool {
	return scanner.MatchAny(r.cfg.CloudDocs, rel) ||
		scanner.MatchAny(r.cfg.LocalDocs, rel) ||
		scanner.MatchAny(r.cfg.CodePaths, rel)
}
