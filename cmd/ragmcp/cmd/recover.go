package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/store"
)

func newRecoverCmd() *cobra.Command {
	var (
		all       bool
		file      string
		cloudOnly bool
		localOnly bool
	)

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Clear the soft-delete flag on indexed chunks",
		Long: `Recovers soft-deleted chunks, either for one file (--file) or for
everything (--all), and restores them in the BM25 sidecar.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case all == (file != ""):
				return errors.Validation("exactly one of --all and --file is required")
			case cloudOnly && localOnly:
				return errors.Validation("--cloud and --local are mutually exclusive")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg, appOptions{cloudOnly: cloudOnly, localOnly: localOnly, offline: true})
			if err != nil {
				return err
			}
			defer a.Close()

			filter := &store.Filter{FilePath: file}
			for _, src := range a.stores() {
				// Capture the content of what we are about to recover so
				// the BM25 sidecar can be restored alongside.
				docs, err := deletedDocs(ctx, src.Store, file)
				if err != nil {
					return err
				}

				n, err := src.Store.Recover(ctx, filter)
				if err != nil {
					return err
				}
				if n > 0 && len(docs) > 0 {
					if err := a.bm25.Index(ctx, docs); err != nil {
						a.logger.Warn("bm25 sidecar restore failed", "error", err)
					}
				}
				cmd.Printf("%-6s recovered %d chunks\n", src.Name, n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "recover every soft-deleted chunk")
	cmd.Flags().StringVar(&file, "file", "", "recover one file's chunks")
	cmd.Flags().BoolVar(&cloudOnly, "cloud", false, "only the cloud store")
	cmd.Flags().BoolVar(&localOnly, "local", false, "only the local store")
	return cmd
}

// deletedDocs scrolls the soft-deleted chunks of one file (or all
// files when path is empty) as BM25 documents.
func deletedDocs(ctx context.Context, st store.VectorStore, path string) ([]*store.Document, error) {
	var docs []*store.Document
	filter := &store.Filter{FilePath: path, DeletedOnly: true}
	var cursor uint64
	for {
		points, next, err := st.Scroll(ctx, filter, cursor, store.MaxBatchSize)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			if content, okc := p.Payload["content"].(string); okc && content != "" {
				docs = append(docs, &store.Document{ID: p.ID, Content: content})
			}
		}
		if next == 0 {
			return docs, nil
		}
		cursor = next
	}
}
