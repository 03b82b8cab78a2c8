package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/index"
	"github.com/Aman-CERP/ragmcp/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		docsOnly  bool
		codeOnly  bool
		cloudOnly bool
		localOnly bool
		cleanup   bool
		dryRun    bool
		prune     bool
		noTUI     bool
		offline   bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the configured docs and code into the vector stores",
		Long: `Scans the configured glob sets, chunks and embeds changed files, and
reconciles them against the stored state. Unchanged chunks are skipped,
changed ones overwritten in place, and vanished ones soft-deleted.

With --cleanup, files that no longer exist on disk are reported as
orphans; add --prune to soft-delete their chunks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case docsOnly && codeOnly:
				return errors.Validation("--docs and --code are mutually exclusive")
			case cloudOnly && localOnly:
				return errors.Validation("--cloud and --local are mutually exclusive")
			case dryRun && prune:
				return errors.Validation("--dry-run and --prune are mutually exclusive")
			case prune && !cleanup:
				return errors.Validation("--prune requires --cleanup")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg, appOptions{
				cloudOnly: cloudOnly,
				localOnly: localOnly,
				offline:   offline,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			renderer := ui.NewRenderer(ui.NewConfig(os.Stderr,
				ui.WithForcePlain(noTUI),
				ui.WithNoColor(ui.DetectNoColor()),
				ui.WithProjectDir(cfg.ProjectRoot)))
			if err := renderer.Start(ctx); err != nil {
				renderer = ui.NewPlainRenderer(ui.NewConfig(os.Stderr))
			}

			start := time.Now()
			summary, err := a.coord.Run(ctx, index.RunOptions{
				DocsOnly: docsOnly,
				CodeOnly: codeOnly,
				Prune:    cleanup && prune,
				Progress: func(done, total int, path string) {
					renderer.UpdateProgress(ui.ProgressEvent{
						Stage:       ui.StageIndexing,
						Current:     done,
						Total:       total,
						CurrentFile: path,
					})
				},
			})
			if err != nil {
				_ = renderer.Stop()
				return err
			}

			renderer.Complete(ui.CompletionStats{
				Files:    summary.FilesIndexed,
				Chunks:   summary.Upserted,
				Duration: time.Since(start),
				Errors:   summary.FilesFailed,
				Embedder: ui.EmbedderInfo{
					Model:      a.embedder.ModelID(),
					Dimensions: a.embedder.Dimensions(),
				},
			})
			_ = renderer.Stop()

			cmd.Printf("scanned %d files: %d chunks upserted, %d skipped, %d soft-deleted, %d recovered\n",
				summary.FilesScanned, summary.Upserted, summary.Skipped, summary.SoftDeleted, summary.Recovered)
			if cleanup {
				verb := "would soft-delete"
				if summary.PruneApplied {
					verb = "soft-deleted"
				}
				cmd.Printf("orphans: %s %d chunks across %d files\n", verb, summary.OrphanChunks, summary.OrphanPaths)
			}

			if summary.FilesFailed > 0 {
				return fmt.Errorf("%d of %d files failed to index: %w",
					summary.FilesFailed, summary.FilesScanned, errPartialFailure)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&docsOnly, "docs", false, "only process the doc globs")
	cmd.Flags().BoolVar(&codeOnly, "code", false, "only process the code globs")
	cmd.Flags().BoolVar(&cloudOnly, "cloud", false, "only the cloud store")
	cmd.Flags().BoolVar(&localOnly, "local", false, "only the local store")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "report chunks whose files no longer exist")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the orphan sweep without applying it (default)")
	cmd.Flags().BoolVar(&prune, "prune", false, "apply the orphan sweep")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "plain text progress output")
	cmd.Flags().BoolVar(&offline, "offline", false, "use the static embedder, skip model detection")
	return cmd
}
