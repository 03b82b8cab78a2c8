package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/internal/mcp"
	"github.com/Aman-CERP/ragmcp/internal/watcher"
)

func newStartCmd() *cobra.Command {
	var (
		watch   bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the MCP server on stdio",
		Long: `Serves the tool surface over line-delimited JSON-RPC on stdio.
stdout carries the protocol exclusively; logs go to the log file.

With --watch, file changes under the project root re-index
incrementally while the server runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, appOptions{offline: offline, withEngine: true})
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := mcp.NewServer(mcp.ServerOptions{
				Config:      cfg,
				Engine:      a.engine,
				Coordinator: a.coord,
				Cloud:       a.cloud,
				Local:       a.local,
				BM25:        a.bm25,
				Logger:      a.logger,
			})
			if err != nil {
				return err
			}

			if watch {
				runner, err := watcher.NewRunner(cfg, a.coord, a.logger)
				if err != nil {
					return err
				}
				go func() {
					if err := runner.Run(ctx); err != nil {
						a.logger.Error("watch mode stopped", "error", err)
					}
				}()
			}

			return server.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "re-index files as they change")
	cmd.Flags().BoolVar(&offline, "offline", false, "use the static embedder, skip model detection")
	return cmd
}
