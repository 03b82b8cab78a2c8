package cmd

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/ragmcp/internal/errors"
)

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootHasAllSubcommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{"index", "stats", "recover", "delete", "clean", "start", "setup", "search", "version"}
	got := make(map[string]bool)
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], "missing subcommand %s", name)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"config", apperrors.Config("bad config"), 2},
		{"store", apperrors.StoreUnavailable(assert.AnError), 3},
		{"partial", fmt.Errorf("3 of 10 files failed: %w", errPartialFailure), 4},
		{"other", assert.AnError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestIndexRejectsConflictingFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"docs and code", []string{"--docs", "--code"}},
		{"cloud and local", []string{"--cloud", "--local"}},
		{"dry-run and prune", []string{"--cleanup", "--dry-run", "--prune"}},
		{"prune without cleanup", []string{"--prune"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, newIndexCmd(), tt.args...)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
		})
	}
}

func TestRecoverRequiresExactlyOneSelector(t *testing.T) {
	_, err := runCommand(t, newRecoverCmd())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	_, err = runCommand(t, newRecoverCmd(), "--all", "--file", "docs/a.md")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestDeleteRejectsPreviewWithConfirm(t *testing.T) {
	_, err := runCommand(t, newDeleteCmd(), "--preview", "--confirm")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, newVersionCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "ragmcp")
}
