// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frei0rhost/frei0rhost/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runFlags() *pflag.FlagSet {
	d := config.Default()
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("plugin", d.Plugin, "")
	fs.Int("width", d.Width, "")
	fs.Int("height", d.Height, "")
	fs.String("interval", d.Interval, "")
	fs.String("topic", d.Topic, "")
	fs.StringSlice("plugin-dir", nil, "")
	fs.StringArray("param", nil, "")
	fs.StringSlice("input", nil, "")
	fs.Bool("sandbox", false, "")
	fs.String("log-format", d.Log.Format, "")
	fs.String("log-level", d.Log.Level, "")
	fs.String("metrics-addr", d.Metrics.Addr, "")
	fs.String("bus-addr", "", "")
	return fs
}

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, 8, cfg.Width)
	assert.Equal(t, 8, cfg.Height)
	assert.Equal(t, "none", cfg.Plugin)
	assert.Contains(t, cfg.Skip, "curves.so")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"width too small", func(c *config.Config) { c.Width = 4 }},
		{"height too large", func(c *config.Config) { c.Height = 4096 }},
		{"bad interval", func(c *config.Config) { c.Interval = "often" }},
		{"zero interval", func(c *config.Config) { c.Interval = "0s" }},
		{"no topic", func(c *config.Config) { c.Topic = "" }},
		{"too many inputs", func(c *config.Config) { c.Inputs = []string{"a", "b", "c", "d"} }},
		{"input loops to output", func(c *config.Config) { c.Inputs = []string{c.Topic} }},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }},
		{"bad param literal", func(c *config.Config) { c.Params = []string{"speed=="} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
plugin: plasma.lua
width: 320
height: 240
interval: 40ms
skip: ["broken.so"]
params:
  - speed=0.5
  - tint=rgb(1, 0, 0)
inputs: [camera]
log:
  level: debug
bus:
  addr: 127.0.0.1:9400
  certs: /etc/frei0rhost/certs
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "plasma.lua", cfg.Plugin)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height)
	assert.Equal(t, 40*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, []string{"broken.so"}, cfg.Skip)
	assert.Equal(t, []string{"camera"}, cfg.Inputs)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format, "unset keys keep defaults")
	assert.Equal(t, "127.0.0.1:9400", cfg.Bus.Addr)
	assert.Equal(t, "/etc/frei0rhost/certs", cfg.Bus.Certs)
	assert.Equal(t, config.DefaultTopic, cfg.Topic)
	assert.Equal(t, config.DefaultControl, cfg.Control)

	assignments, err := cfg.Assignments()
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "speed", assignments[0].Name)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "width: 320\nheight: 240\ntopic: from-file\n")

	fs := runFlags()
	require.NoError(t, fs.Parse([]string{
		"--width", "640",
		"--param", "speed=0.25",
		"--param", "tint=rgb(0, 1, 0)",
		"--log-format", "text",
		"--metrics-addr", "",
	}))

	cfg, err := config.Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 240, cfg.Height, "unchanged flags do not override the file")
	assert.Equal(t, "from-file", cfg.Topic)
	assert.Equal(t, []string{"speed=0.25", "tint=rgb(0, 1, 0)"}, cfg.Params)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "widht: 320\n")

	_, err := config.Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestLoad_RejectsOutOfRangeSize(t *testing.T) {
	path := writeConfig(t, "width: 4096\n")

	_, err := config.Load(path, nil)
	require.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTopic, cfg.Topic)
}

func TestGenerateSchema(t *testing.T) {
	data, err := config.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, config.SchemaID, schema["$id"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"plugin", "width", "height", "interval", "plugin_dirs", "params", "log", "bus"} {
		assert.Contains(t, props, key)
	}
	width := props["width"].(map[string]any)
	assert.EqualValues(t, 8, width["minimum"])
	assert.EqualValues(t, 2048, width["maximum"])
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"empty", "", false},
		{"valid", "width: 64\nlog:\n  format: text\n", false},
		{"wrong type", "width: wide\n", true},
		{"bad enum", "log:\n  format: xml\n", true},
		{"unknown nested key", "bus:\n  port: 1\n", true},
		{"too many inputs", "inputs: [a, b, c, d]\n", true},
		{"invalid yaml", "width: [\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.ValidateSchema([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				assert.NotEmpty(t, config.FormatSchemaError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFlagKey(t *testing.T) {
	assert.Equal(t, "log.format", config.FlagKey("log-format"))
	assert.Equal(t, "plugin_dirs", config.FlagKey("plugin-dir"))
	assert.Equal(t, "width", config.FlagKey("width"))
	assert.Equal(t, "bus.certs", config.FlagKey("bus-certs"))
	assert.Equal(t, "", config.FlagKey("config"))
}
