// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Package config loads frei0rhost settings from a YAML file overlaid with
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/frei0rhost/frei0rhost/internal/plugin"
	"github.com/frei0rhost/frei0rhost/internal/xdg"
)

// Defaults.
const (
	DefaultInterval    = "100ms"
	DefaultSize        = 8
	MinSize            = 8
	MaxSize            = 2048
	DefaultTopic       = "frei0r/image"
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultControl     = "default"
	MaxInputs          = 3
)

// Config is the complete host configuration.
type Config struct {
	// Plugin is the plugin to activate at start: a path, a file name in one
	// of PluginDirs, or "none".
	Plugin     string   `koanf:"plugin" jsonschema:"description=Plugin path or file name or none"`
	Width      int      `koanf:"width" jsonschema:"minimum=8,maximum=2048"`
	Height     int      `koanf:"height" jsonschema:"minimum=8,maximum=2048"`
	Interval   string   `koanf:"interval" jsonschema:"description=Update period as a Go duration"`
	Topic      string   `koanf:"topic" jsonschema:"description=Topic of published frames"`
	PluginDirs []string `koanf:"plugin_dirs" jsonschema:"description=Directories scanned for plugins"`
	Skip       []string `koanf:"skip" jsonschema:"description=Glob patterns of plugin files never loaded"`
	Sandbox    bool     `koanf:"sandbox" jsonschema:"description=Run native plugins in a child process"`
	Params     []string `koanf:"params" jsonschema:"description=Parameter assignments applied on every switch"`
	// Inputs are the topics feeding input slots 0, 1 and 2.
	Inputs []string `koanf:"inputs" jsonschema:"maxItems=3"`
	// Control names the control socket; empty disables it.
	Control string `koanf:"control" jsonschema:"description=Control socket name"`

	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Bus     BusConfig     `koanf:"bus"`
}

// LogConfig selects the log output.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig configures the HTTP endpoint for metrics, health probes,
// frame preview and parameter schema.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr    string `koanf:"addr"`
	Preview bool   `koanf:"preview"`
}

// BusConfig configures the gRPC frame bus.
type BusConfig struct {
	// Addr serves the local bus over gRPC; empty keeps it in-process.
	Addr string `koanf:"addr"`
	// Remote publishes frames to another host's bus instead of the local one.
	Remote string `koanf:"remote"`
	// Certs is a directory of mTLS certificates securing both; empty
	// leaves the bus in plaintext.
	Certs string `koanf:"certs"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Plugin:     "none",
		Width:      DefaultSize,
		Height:     DefaultSize,
		Interval:   DefaultInterval,
		Topic:      DefaultTopic,
		PluginDirs: append(xdg.PluginPath(), xdg.ScriptDir()),
		Skip:       []string{"curves.so"},
		Control:    DefaultControl,
		Log:        LogConfig{Format: DefaultLogFormat, Level: DefaultLogLevel},
		Metrics:    MetricsConfig{Addr: DefaultMetricsAddr, Preview: true},
	}
}

// TickInterval returns Interval as a duration. Validate has checked it.
func (c *Config) TickInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0
	}
	return d
}

// Assignments parses Params.
func (c *Config) Assignments() ([]*plugin.Assignment, error) {
	return plugin.ParseAssignments(c.Params)
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Width < MinSize || c.Width > MaxSize {
		return fmt.Errorf("width must be in [%d, %d], got %d", MinSize, MaxSize, c.Width)
	}
	if c.Height < MinSize || c.Height > MaxSize {
		return fmt.Errorf("height must be in [%d, %d], got %d", MinSize, MaxSize, c.Height)
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if len(c.Inputs) > MaxInputs {
		return fmt.Errorf("at most %d inputs are supported, got %d", MaxInputs, len(c.Inputs))
	}
	if slices.Contains(c.Inputs, c.Topic) {
		return fmt.Errorf("input topic %q is the output topic", c.Topic)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := c.Assignments(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}

// flagKeys maps flag names that do not follow the dash-to-underscore rule
// to their config keys.
var flagKeys = map[string]string{
	"plugin-dir":     "plugin_dirs",
	"param":          "params",
	"input":          "inputs",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"metrics-addr":   "metrics.addr",
	"preview":        "metrics.preview",
	"bus-addr":       "bus.addr",
	"bus-remote":     "bus.remote",
	"bus-certs":      "bus.certs",
	"config":         "",
	"help":           "",
	"schema":         "",
	"include-failed": "",
}

// FlagKey returns the config key set by a flag, or "" for flags that are
// not configuration.
func FlagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}

// Load reads the config file at path, then applies flags. An empty path
// uses the XDG config file when it exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := setDefaults(k); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	switch {
	case err == nil:
		if err := ValidateSchema(data); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key := FlagKey(f.Name)
			if key == "" || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults seeds k with Default so files and flags only override what
// they name.
func setDefaults(k *koanf.Koanf) error {
	d := Default()
	values := map[string]any{
		"plugin":          d.Plugin,
		"width":           d.Width,
		"height":          d.Height,
		"interval":        d.Interval,
		"topic":           d.Topic,
		"plugin_dirs":     d.PluginDirs,
		"skip":            d.Skip,
		"sandbox":         d.Sandbox,
		"control":         d.Control,
		"log.format":      d.Log.Format,
		"log.level":       d.Log.Level,
		"metrics.addr":    d.Metrics.Addr,
		"metrics.preview": d.Metrics.Preview,
	}
	for key, v := range values {
		if err := k.Set(key, v); err != nil {
			return fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}
	return nil
}
