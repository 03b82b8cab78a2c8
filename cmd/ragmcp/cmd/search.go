package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		topK        int
		contentType string
		language    string
		offline     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one hybrid retrieval from the command line",
		Long: `Classifies the query, runs the hybrid BM25 + vector retrieval, and
prints the ranked chunks. Mainly for inspecting what the MCP search
tool would return.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.Validation("a query is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg, appOptions{offline: offline, withEngine: true})
			if err != nil {
				return err
			}
			defer a.Close()

			ranked, cls, err := a.engine.SearchWith(ctx, query, search.Options{
				ContentType: contentType,
				Language:    language,
				TopK:        topK,
			})
			if err != nil {
				return err
			}

			cmd.Printf("intent=%s confidence=%.2f results=%d\n\n", cls.Intent, cls.Confidence, len(ranked))
			for i, c := range ranked {
				cmd.Printf("%2d. [%.3f] %s:%d-%d", i+1, c.Score, c.FilePath(), c.LineStart(), c.LineEnd())
				if section := c.Section(); section != "" {
					cmd.Printf(" (%s)", section)
				}
				cmd.Printf(" [%s]\n", c.Source)
				if content := c.Content(); content != "" {
					cmd.Printf("    %s\n", firstLine(content))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "result count (default from config)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "restrict to code or text chunks")
	cmd.Flags().StringVar(&language, "language", "", "restrict to one programming language")
	cmd.Flags().BoolVar(&offline, "offline", false, "use the static embedder, skip model detection")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
