// Package cmd implements the ragmcp CLI.
package cmd

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/logging"
	"github.com/Aman-CERP/ragmcp/internal/profiling"
	"github.com/Aman-CERP/ragmcp/pkg/version"
)

var (
	configPath string
	debugMode  bool

	loggingCleanup func()

	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// errPartialFailure marks runs that completed with per-file failures.
// It maps to exit code 4.
var errPartialFailure = errors.New("completed with partial failures")

// NewRootCmd builds the ragmcp command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragmcp",
		Short: "Hybrid RAG MCP server over cloud and local vector stores",
		Long: `ragmcp indexes project documentation and source code into Qdrant
(cloud, local, or both), serves hybrid BM25 + vector retrieval over the
Model Context Protocol, and ships the admin commands to keep the index
healthy.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("ragmcp version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to mcp-config.json (default: standard search order)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "write a CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "write a heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "write an execution trace to file")
	cmd.PersistentPreRunE = startRun
	cmd.PersistentPostRunE = stopRun

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newRecoverCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// startRun installs the process logger and starts any requested
// profiles. In start (stdio MCP mode) everything logs to the file
// sink; stdout belongs to JSON-RPC and stray stderr bytes confuse
// clients.
func startRun(cmd *cobra.Command, _ []string) error {
	var cfg logging.Config
	switch {
	case cmd.Name() == "start":
		cfg = logging.ServerConfig()
	case debugMode:
		cfg = logging.DebugConfig()
	default:
		cfg = logging.DefaultConfig()
	}

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.Debug("logging ready", "file", cfg.FilePath, "level", cfg.Level)

	if profileCPU != "" {
		if cpuCleanup, err = profiler.StartCPU(profileCPU); err != nil {
			return err
		}
	}
	if profileTrace != "" {
		if traceCleanup, err = profiler.StartTrace(profileTrace); err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
				cpuCleanup = nil
			}
			return err
		}
	}
	return nil
}

func stopRun(*cobra.Command, []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return err
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// ExitCode maps an error to the documented process exit codes:
// 2 configuration, 3 vector store, 4 partial failure, 1 anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errPartialFailure) {
		return 4
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeConfig:
		return 2
	case apperrors.CodeStoreUnavailable, apperrors.CodeDimensionMismatch:
		return 3
	}
	return 1
}
