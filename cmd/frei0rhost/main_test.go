// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// luaDir holds the scripted effects shipped with the repository.
var luaDir = filepath.Join("..", "..", "plugins", "lua")

// execute runs the root command with args in an empty XDG environment.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolate(t)
	return runRoot(args...)
}

// isolate points every XDG location at fresh temporary directories.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("FREI0R_PATH", "")
	t.Setenv("XDG_RUNTIME_DIR", shortTempDir(t))
	configFile = ""
}

func runRoot(args ...string) (string, error) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// shortTempDir keeps Unix socket paths under the length limit.
func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "f0r")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	output, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"run", "list", "inspect", "config", "ctl", "certs"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
	assert.NotContains(t, output, "sandbox", "sandbox is internal and should stay hidden")
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "config flag",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "config flag with equals",
			args:     []string{"--config=/etc/frei0rhost.yaml", "--help"},
			wantFlag: "/etc/frei0rhost.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile = ""

			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestRootCommand_LongDescription(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "frei0rhost", cmd.Use)
	assert.Contains(t, cmd.Long, "frei0r", "Long description should mention frei0r")
	assert.Contains(t, cmd.Long, "frame bus", "Long description should mention the frame bus")
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestRunCommand_Flags(t *testing.T) {
	cmd := NewRunCmd()

	for _, name := range []string{
		"plugin", "width", "height", "interval", "topic", "param", "input",
		"metrics-addr", "preview", "bus-addr", "bus-remote", "bus-certs", "control",
		"plugin-dir", "skip", "sandbox", "log-format", "log-level",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "run is missing --%s", name)
	}

	width := cmd.Flags().Lookup("width")
	require.NotNil(t, width)
	assert.Equal(t, "8", width.DefValue)

	plugin := cmd.Flags().Lookup("plugin")
	require.NotNil(t, plugin)
	assert.Equal(t, "none", plugin.DefValue)
}

func TestRunCommand_RejectsInvalidConfiguration(t *testing.T) {
	_, err := execute(t, "run", "--width", "4096", "--metrics-addr", "")
	require.Error(t, err)
}

func TestRunCommand_UnknownPlugin(t *testing.T) {
	_, err := execute(t, "run", "missing", "--plugin-dir", luaDir, "--metrics-addr", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
