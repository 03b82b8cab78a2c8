package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/store"
)

func newDeleteCmd() *cobra.Command {
	var (
		preview   bool
		confirm   bool
		cloudOnly bool
		localOnly bool
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Physically purge soft-deleted chunks",
		Long: `Removes every chunk whose is_deleted flag is set. The default is a
preview of what would be purged; --confirm applies it. Purged points
are unrecoverable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case preview && confirm:
				return errors.Validation("--preview and --confirm are mutually exclusive")
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

			for _, src := range a.stores() {
				ids, err := deletedIDs(ctx, src.Store)
				if err != nil {
					return err
				}
				if !confirm {
					cmd.Printf("%-6s would purge %d chunks (re-run with --confirm to apply)\n", src.Name, len(ids))
					continue
				}

				for start := 0; start < len(ids); start += store.MaxBatchSize {
					if err := src.Store.DeleteByIDs(ctx, ids[start:min(start+store.MaxBatchSize, len(ids))]); err != nil {
						return err
					}
				}
				if len(ids) > 0 {
					if err := a.bm25.Delete(ctx, ids); err != nil {
						a.logger.Warn("bm25 sidecar delete failed", "error", err)
					}
				}
				cmd.Printf("%-6s purged %d chunks\n", src.Name, len(ids))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&preview, "preview", false, "show what would be purged (default)")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "apply the purge")
	cmd.Flags().BoolVar(&cloudOnly, "cloud", false, "only the cloud store")
	cmd.Flags().BoolVar(&localOnly, "local", false, "only the local store")
	return cmd
}

// deletedIDs lists every soft-deleted point id in the store.
func deletedIDs(ctx context.Context, st store.VectorStore) ([]uint64, error) {
	var ids []uint64
	filter := &store.Filter{DeletedOnly: true}
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
