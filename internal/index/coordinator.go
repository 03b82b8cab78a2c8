// Package index drives the incremental indexing pipeline: scan the
// project, chunk and embed changed files, diff against the stored
// state, and keep the BM25 sidecar in step with the vector store.
package index

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/ragmcp/internal/chunk"
	"github.com/Aman-CERP/ragmcp/internal/config"
	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/scanner"
	"github.com/Aman-CERP/ragmcp/internal/store"
)

// DefaultWorkers bounds the per-file pipeline concurrency.
const DefaultWorkers = 4

// Coordinator owns one project's indexing pipeline. Construct with
// NewCoordinator; Run serializes against other runs via a file lock.
type Coordinator struct {
	cfg         *config.Config
	scanner     *scanner.Scanner
	cloud       store.VectorStore
	local       store.VectorStore
	bm25        store.BM25Index
	embedder    embed.Embedder
	docChunker  chunk.Chunker
	codeChunker chunk.Chunker
	workers     int
	logger      *slog.Logger
}

// CoordinatorOptions wires the coordinator's dependencies. At least
// one of Cloud and Local is required; BM25 is optional (the sidecar is
// derived state).
type CoordinatorOptions struct {
	Config   *config.Config
	Cloud    store.VectorStore
	Local    store.VectorStore
	BM25     store.BM25Index
	Embedder embed.Embedder
	Workers  int
	Logger   *slog.Logger
}

// NewCoordinator validates the wiring and builds a coordinator.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Config == nil {
		return nil, errors.Validation("a config is required")
	}
	if opts.Cloud == nil && opts.Local == nil {
		return nil, errors.Validation("at least one vector store is required")
	}
	if opts.Embedder == nil {
		return nil, errors.Validation("an embedder is required")
	}

	sc, err := scanner.New()
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		cfg:     opts.Config,
		scanner: sc,
		cloud:   opts.Cloud,
		local:   opts.Local,
		bm25:    opts.BM25,
		embedder: opts.Embedder,
		docChunker: chunk.NewMarkdownChunker(chunk.MarkdownOptions{
			ChunkSize:    opts.Config.Chunking.DocChunkSize,
			ChunkOverlap: opts.Config.Chunking.DocChunkOverlap,
		}),
		codeChunker: chunk.NewCodeChunker(),
		workers:     workers,
		logger:      logger,
	}, nil
}

// RunOptions narrows one Run invocation.
type RunOptions struct {
	// DocsOnly / CodeOnly restrict which glob sets are processed. The
	// orphan sweep only runs on full invocations: a partial glob set
	// cannot tell a missing file from an unscanned one.
	DocsOnly bool
	CodeOnly bool

	// Prune applies the orphan sweep. Default is a dry run that only
	// reports counts.
	Prune bool

	// Root overrides the configured project root for this run.
	Root string

	// Progress, when set, is called after each file completes.
	Progress func(done, total int, path string)
}

// Summary reports what one Run did.
type Summary struct {
	FilesScanned int `json:"files_scanned"`
	FilesIndexed int `json:"files_indexed"`
	FilesFailed  int `json:"files_failed"`

	Upserted    int `json:"chunks_upserted"`
	Skipped     int `json:"chunks_skipped"`
	SoftDeleted int `json:"chunks_soft_deleted"`
	Recovered   int `json:"chunks_recovered"`

	OrphanPaths  int  `json:"orphan_paths"`
	OrphanChunks int  `json:"orphan_chunks"`
	PruneApplied bool `json:"prune_applied"`
}

// target is one (store, glob set) pair a Run processes.
type target struct {
	source     string
	store      store.VectorStore
	collection string
	scan       *scanner.Options
}

// targets routes glob sets to stores: cloud docs and code to the cloud
// store, local docs to the local store; code falls back to the local
// store when no cloud is configured.
func (c *Coordinator) targets(opts RunOptions) []target {
	var out []target

	root := c.cfg.ProjectRoot
	if opts.Root != "" {
		root = opts.Root
	}

	docGlobs := func(globs []string) []string {
		if opts.CodeOnly {
			return nil
		}
		return globs
	}
	codeGlobs := func() []string {
		if opts.DocsOnly {
			return nil
		}
		return c.cfg.CodePaths
	}

	if c.cloud != nil {
		out = append(out, target{
			source:     "cloud",
			store:      c.cloud,
			collection: c.cfg.CloudQdrant.Collection,
			scan: &scanner.Options{
				Root:             root,
				DocGlobs:         docGlobs(c.cfg.CloudDocs),
				CodeGlobs:        codeGlobs(),
				ExcludePatterns:  c.cfg.ExcludePatterns,
				RespectGitignore: true,
			},
		})
	}
	if c.local != nil {
		scan := &scanner.Options{
			Root:             root,
			DocGlobs:         docGlobs(c.cfg.LocalDocs),
			ExcludePatterns:  c.cfg.ExcludePatterns,
			RespectGitignore: true,
		}
		if c.cloud == nil {
			scan.CodeGlobs = codeGlobs()
		}
		out = append(out, target{
			source:     "local",
			store:      c.local,
			collection: c.cfg.LocalQdrant.Collection,
			scan:       scan,
		})
	}
	return out
}

// Run executes one full indexing pass: per target, scan, diff, embed,
// upsert, then the orphan sweep. Per-file failures are logged and
// counted, never fatal; store and lock failures are.
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	lock, err := acquireRunLock(c.cfg.DataDir())
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	summary := &Summary{}
	for _, t := range c.targets(opts) {
		if err := t.store.EnsureCollection(ctx, t.collection, c.embedder.Dimensions(), store.DefaultIndexedKeys); err != nil {
			return summary, err
		}

		files, err := c.scanner.Scan(ctx, t.scan)
		if err != nil {
			return summary, err
		}
		summary.FilesScanned += len(files)

		var mu sync.Mutex
		done := 0
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.workers)
		for _, f := range files {
			g.Go(func() error {
				res, err := c.indexFile(gctx, t, f)

				mu.Lock()
				defer mu.Unlock()
				done++
				if err != nil {
					summary.FilesFailed++
					c.logger.Warn("indexing file failed", "path", f.Path, "error", err)
				} else {
					summary.FilesIndexed++
					summary.Upserted += res.upserted
					summary.Skipped += res.skipped
					summary.SoftDeleted += res.softDeleted
					summary.Recovered += res.recovered
				}
				if opts.Progress != nil {
					opts.Progress(done, len(files), f.Path)
				}
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return summary, err
		}

		if !opts.DocsOnly && !opts.CodeOnly {
			live := make(map[string]bool, len(files))
			for _, f := range files {
				live[f.Path] = true
			}
			if err := c.sweepOrphans(ctx, t, live, opts.Prune, summary); err != nil {
				return summary, err
			}
		}
	}
	summary.PruneApplied = opts.Prune

	c.logger.Info("index run complete",
		"files_scanned", summary.FilesScanned,
		"files_failed", summary.FilesFailed,
		"upserted", summary.Upserted,
		"skipped", summary.Skipped,
		"soft_deleted", summary.SoftDeleted,
		"recovered", summary.Recovered,
		"orphan_paths", summary.OrphanPaths)
	return summary, nil
}

type fileResult struct {
	upserted    int
	skipped     int
	softDeleted int
	recovered   int
}

type existingChunk struct {
	id      uint64
	hash    string
	deleted bool
}

// indexFile diffs one file's chunks against the stored state by
// (line_start, content_hash): matching pairs are skipped, changed
// lines overwrite in place (same id), new lines insert, vanished lines
// soft-delete, and unchanged-but-deleted lines recover.
func (c *Coordinator) indexFile(ctx context.Context, t target, f *scanner.FileInfo) (fileResult, error) {
	var res fileResult

	content, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return res, err
	}

	input := &chunk.FileInput{Path: f.Path, Content: content, Language: f.Language}
	var chunks []*chunk.Chunk
	if f.Kind == scanner.KindDoc {
		input.DocType = c.cfg.DocTypeFor(f.Path)
		chunks, err = c.docChunker.Chunk(ctx, input)
	} else {
		chunks, err = c.codeChunker.Chunk(ctx, input)
	}
	if err != nil {
		return res, err
	}

	return c.applyDiff(ctx, t.store, f.Path, chunks)
}

// applyDiff reconciles one file's fresh chunks with the stored state.
func (c *Coordinator) applyDiff(ctx context.Context, st store.VectorStore, path string, chunks []*chunk.Chunk) (fileResult, error) {
	var res fileResult

	existing, err := c.existingState(ctx, st, path)
	if err != nil {
		return res, err
	}

	var toEmbed []*chunk.Chunk
	var recoverIDs []uint64
	seen := make(map[int]bool, len(chunks))
	for _, ch := range chunks {
		seen[ch.Payload.LineStart] = true
		ex, ok := existing[ch.Payload.LineStart]
		switch {
		case ok && ex.hash == ch.Payload.ContentHash && !ex.deleted:
			res.skipped++
		case ok && ex.hash == ch.Payload.ContentHash && ex.deleted:
			recoverIDs = append(recoverIDs, ex.id)
		default:
			toEmbed = append(toEmbed, ch)
		}
	}
	var vanishedIDs []uint64
	for line, ex := range existing {
		if !seen[line] && !ex.deleted {
			vanishedIDs = append(vanishedIDs, ex.id)
		}
	}

	if err := c.upsertChunks(ctx, st, toEmbed); err != nil {
		return res, err
	}
	res.upserted = len(toEmbed)

	n, err := c.setDeletedByIDs(ctx, st, recoverIDs, false)
	if err != nil {
		return res, err
	}
	res.recovered = n

	n, err = c.setDeletedByIDs(ctx, st, vanishedIDs, true)
	if err != nil {
		return res, err
	}
	res.softDeleted = n

	return res, nil
}

// existingState scrolls every stored chunk of one file, deleted ones
// included, keyed by line_start.
func (c *Coordinator) existingState(ctx context.Context, st store.VectorStore, path string) (map[int]existingChunk, error) {
	out := make(map[int]existingChunk)
	filter := &store.Filter{FilePath: path, IncludeDeleted: true}
	var cursor uint64
	for {
		points, next, err := st.Scroll(ctx, filter, cursor, store.MaxBatchSize)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			payload := chunk.PayloadFromMap(p.Payload)
			out[payload.LineStart] = existingChunk{
				id:      p.ID,
				hash:    payload.ContentHash,
				deleted: payload.IsDeleted,
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return out, nil
}

// upsertChunks embeds and stores chunks in batches, mirroring each
// batch into the BM25 sidecar. Cancellation is observed between
// batches.
func (c *Coordinator) upsertChunks(ctx context.Context, st store.VectorStore, chunks []*chunk.Chunk) error {
	for start := 0; start < len(chunks); start += store.MaxBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := chunks[start:min(start+store.MaxBatchSize, len(chunks))]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Content
		}
		vectors, err := c.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}

		points := make([]*store.Point, len(batch))
		docs := make([]*store.Document, len(batch))
		for i, ch := range batch {
			// The chunk text rides in the payload so retrieval can hand
			// it to the reranker and synthesizer without a second fetch.
			payload := ch.Payload.ToMap()
			payload["content"] = ch.Content
			points[i] = &store.Point{ID: ch.ID, Vector: vectors[i], Payload: payload}
			docs[i] = &store.Document{ID: ch.ID, Content: ch.Content}
		}
		if err := st.Upsert(ctx, points); err != nil {
			return err
		}
		c.mirrorIndex(ctx, docs)
	}
	return nil
}

// setDeletedByIDs flips is_deleted on specific points. The filter-based
// SoftDelete/Recover work on whole files; the diff needs per-point
// precision, so this reads, flips, and re-upserts.
func (c *Coordinator) setDeletedByIDs(ctx context.Context, st store.VectorStore, ids []uint64, deleted bool) (int, error) {
	changed := 0
	for start := 0; start < len(ids); start += store.MaxBatchSize {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		batch := ids[start:min(start+store.MaxBatchSize, len(ids))]

		points, err := st.GetPoints(ctx, batch, true)
		if err != nil {
			return changed, err
		}
		var docs []*store.Document
		for _, p := range points {
			p.Payload["is_deleted"] = deleted
			if !deleted {
				docs = append(docs, &store.Document{ID: p.ID, Content: contentOf(p)})
			}
		}
		if err := st.Upsert(ctx, points); err != nil {
			return changed, err
		}
		changed += len(points)

		if deleted {
			c.mirrorDelete(ctx, batch)
		} else {
			c.mirrorIndex(ctx, docs)
		}
	}
	return changed, nil
}

func contentOf(p *store.Point) string {
	s, _ := p.Payload["content"].(string)
	return s
}

// mirrorIndex keeps the sidecar in step; sidecar failures degrade
// retrieval, so they log instead of failing the run.
func (c *Coordinator) mirrorIndex(ctx context.Context, docs []*store.Document) {
	if c.bm25 == nil || len(docs) == 0 {
		return
	}
	if err := c.bm25.Index(ctx, docs); err != nil {
		c.logger.Warn("bm25 sidecar index failed", "error", err)
	}
}

func (c *Coordinator) mirrorDelete(ctx context.Context, ids []uint64) {
	if c.bm25 == nil || len(ids) == 0 {
		return
	}
	if err := c.bm25.Delete(ctx, ids); err != nil {
		c.logger.Warn("bm25 sidecar delete failed", "error", err)
	}
}
