package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and captures both streams.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

type workspace struct {
	inbox   string
	dest    string
	journal string
	config  string
}

// newWorkspace writes a JSON configuration for a fresh inbox and destination.
func newWorkspace(t *testing.T, extra map[string]any) *workspace {
	t.Helper()
	root := t.TempDir()
	w := &workspace{
		inbox:   filepath.Join(root, "Downloads"),
		dest:    filepath.Join(root, "Master_Automation"),
		journal: filepath.Join(root, "journal"),
		config:  filepath.Join(root, "exportwatch.json"),
	}
	require.NoError(t, os.MkdirAll(w.inbox, 0o755))

	doc := map[string]any{
		"monitoredDirectories": []string{w.inbox},
		"destinationRoot":      w.dest,
		"journal":              map[string]any{"directory": w.journal},
	}
	for k, v := range extra {
		doc[k] = v
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(w.config, data, 0o644))
	return w
}

func (w *workspace) drop(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(w.inbox, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "exportwatch", cmd.Use)
	assert.Contains(t, cmd.Long, "first matching rule")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"watch", "scan", "route", "status", "rules", "stats", "validate"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)
}

func TestStatsCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	stats, _, err := cmd.Find([]string{"stats"})
	require.NoError(t, err)

	top := stats.Flags().Lookup("top")
	require.NotNil(t, top)
	assert.Equal(t, "10", top.DefValue)
	assert.NotNil(t, stats.Flags().Lookup("since"))
}

func TestArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"watch without config", []string{"watch"}},
		{"scan with extra args", []string{"scan", "a.json", "b.json"}},
		{"route without files", []string{"route", "a.json"}},
		{"rules with two configs", []string{"rules", "a.json", "b.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestMissingConfigIsCommandError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")
	for _, name := range []string{"watch", "scan", "status", "stats", "validate"} {
		t.Run(name, func(t *testing.T) {
			_, _, err := execute(t, name, missing)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "inner", errors.New("cause")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "outer: inner: cause", wrapped.Error())
}
