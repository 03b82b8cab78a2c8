package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/ragmcp/internal/gitignore"
)

// FSWatcher watches a directory tree with fsnotify, filters events
// through .gitignore and the configured ignore patterns, and emits
// debounced batches.
type FSWatcher struct {
	fsw       *fsnotify.Watcher
	debouncer *debouncer
	events    chan []FileEvent
	errs      chan error
	stopCh    chan struct{}
	opts      Options
	logger    *slog.Logger

	mu        sync.RWMutex
	root      string
	gitignore *gitignore.Matcher
	stopped   bool

	droppedBatches atomic.Uint64
}

// NewFSWatcher builds a watcher. Start begins delivery.
func NewFSWatcher(opts Options, logger *slog.Logger) (*FSWatcher, error) {
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &FSWatcher{
		fsw:       fsw,
		debouncer: newDebouncer(opts.DebounceWindow, logger),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errs:      make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
		logger:    logger,
	}, nil
}

// Start watches root recursively until the context is cancelled or
// Stop is called. It blocks running the event loop.
func (w *FSWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.mu.Lock()
	w.root = abs
	w.mu.Unlock()

	w.reloadGitignore()

	if err := w.addRecursive(abs); err != nil {
		return fmt.Errorf("register watch directories: %w", err)
	}

	go w.forward(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, open := <-w.fsw.Events:
			if !open {
				return nil
			}
			w.handle(event)
		case err, open := <-w.fsw.Errors:
			if !open {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handle converts one fsnotify event into a debounced FileEvent.
func (w *FSWatcher) handle(event fsnotify.Event) {
	w.mu.RLock()
	root := w.root
	w.mu.RUnlock()

	rel, err := filepath.Rel(root, event.Name)
	if err != nil {
		rel = event.Name
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if w.ignored(rel, isDir) {
		return
	}

	// A .gitignore edit can change the visibility of arbitrarily many
	// files, so it becomes a reconcile signal rather than a file event.
	if filepath.Base(event.Name) == ".gitignore" {
		w.reloadGitignore()
		w.debouncer.Add(FileEvent{Path: rel, Operation: OpGitignoreChange, Timestamp: time.Now()})
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			_ = w.fsw.Add(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: rel, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

// forward pushes debounced batches to the output channel.
func (w *FSWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, open := <-w.debouncer.Output():
			if !open || len(batch) == 0 {
				if !open {
					return
				}
				continue
			}
			select {
			case w.events <- batch:
			default:
				count := w.droppedBatches.Add(1)
				w.logger.Warn("watcher event buffer full, dropping batch",
					"batch_size", len(batch), "dropped_batches", count)
			}
		}
	}
}

// addRecursive registers every non-ignored directory under root.
func (w *FSWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return w.fsw.Add(path)
		}
		if w.ignored(rel, true) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ignored reports whether a relative path is outside the watch scope.
func (w *FSWatcher) ignored(rel string, isDir bool) bool {
	if rel == "." || rel == "" {
		return true
	}
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}
	if rel == ".ragmcp" || strings.HasPrefix(rel, ".ragmcp/") {
		return true
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gitignore != nil && w.gitignore.Match(rel, isDir)
}

// reloadGitignore rebuilds the matcher from the configured patterns
// plus every .gitignore in the tree.
func (w *FSWatcher) reloadGitignore() {
	w.mu.Lock()
	defer w.mu.Unlock()

	matcher := gitignore.New()
	for _, pattern := range w.opts.IgnorePatterns {
		matcher.AddPattern(pattern)
	}

	rootIgnore := filepath.Join(w.root, ".gitignore")
	if err := matcher.AddFromFile(rootIgnore, ""); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("loading .gitignore failed", "path", rootIgnore, "error", err)
	}
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != ".gitignore" || path == rootIgnore {
			return nil
		}
		base, _ := filepath.Rel(w.root, filepath.Dir(path))
		if err := matcher.AddFromFile(path, filepath.ToSlash(base)); err != nil {
			w.logger.Warn("loading nested .gitignore failed", "path", path, "error", err)
		}
		return nil
	})

	w.gitignore = matcher
}

func (w *FSWatcher) emitError(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

// Events delivers debounced batches. Closed when the watcher stops.
func (w *FSWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors delivers non-fatal watcher errors.
func (w *FSWatcher) Errors() <-chan error {
	return w.errs
}

// DroppedBatches counts batches dropped to buffer overflow.
func (w *FSWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	err := w.fsw.Close()
	close(w.events)
	close(w.errs)
	return err
}
