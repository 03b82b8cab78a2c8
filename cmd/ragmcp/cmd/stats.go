package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/internal/errors"
)

func newStatsCmd() *cobra.Command {
	var cloudOnly, localOnly bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show chunk counts per collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cloudOnly && localOnly {
				return errors.Validation("--cloud and --local are mutually exclusive")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, appOptions{cloudOnly: cloudOnly, localOnly: localOnly, offline: true})
			if err != nil {
				return err
			}
			defer a.Close()

			for _, src := range a.stores() {
				stats, err := src.Store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Printf("%-6s total=%d active=%d deleted=%d\n",
					src.Name, stats.Total, stats.Active, stats.Deleted)
			}
			if bs := a.bm25.Stats(); bs != nil {
				cmd.Printf("bm25   documents=%d\n", bs.DocumentCount)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cloudOnly, "cloud", false, "only the cloud store")
	cmd.Flags().BoolVar(&localOnly, "local", false, "only the local store")
	return cmd
}
