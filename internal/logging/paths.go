package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.ragmcp/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ragmcp", "logs")
	}
	return filepath.Join(home, ".ragmcp", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "ragmcp.log")
}

func dirOf(path string) string {
	if path == "" {
		return DefaultLogDir()
	}
	return filepath.Dir(path)
}
