package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/configs"
	"github.com/Aman-CERP/ragmcp/internal/config"
)

func newSetupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a starter mcp-config.json and verify connectivity",
		Long: `Writes the embedded configuration template to the working directory,
then loads it and pings each configured vector store. Connectivity
failures are reported as warnings: the starter file ships with
placeholder credentials that need editing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			path := filepath.Join(cwd, config.ConfigFileName)

			if _, err := os.Stat(path); err == nil && !force {
				cmd.Printf("%s already exists; use --force to overwrite\n", path)
			} else {
				if err := os.WriteFile(path, configs.ConfigTemplate, 0o644); err != nil {
					return err
				}
				cmd.Printf("wrote %s\n", path)
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			a, err := buildApp(ctx, cfg, appOptions{offline: true})
			if err != nil {
				return err
			}
			defer a.Close()

			for _, src := range a.stores() {
				if _, err := src.Store.Stats(ctx); err != nil {
					cmd.Printf("%-6s unreachable: %v\n", src.Name, err)
					continue
				}
				cmd.Printf("%-6s ok\n", src.Name)
			}
			cmd.Println("edit the file, then run 'ragmcp index' to build the index")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
