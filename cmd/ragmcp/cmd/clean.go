package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove derived local state",
		Long: `Deletes the .ragmcp data directory: BM25 sidecars, embedded store
files, the embedding cache, and the run lock. The vector stores
themselves are untouched; everything removed here is rebuilt by the
next index run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir := cfg.DataDir()
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				cmd.Printf("nothing to clean at %s\n", dir)
				return nil
			}
			if err := os.RemoveAll(dir); err != nil {
				return err
			}
			cmd.Printf("removed %s\n", dir)
			return nil
		},
	}
}
