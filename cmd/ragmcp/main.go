// Command ragmcp is the hybrid RAG MCP server and its admin CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/ragmcp/cmd/ragmcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
