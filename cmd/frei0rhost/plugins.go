// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frei0rhost/frei0rhost/internal/config"
	"github.com/frei0rhost/frei0rhost/internal/logging"
	"github.com/frei0rhost/frei0rhost/internal/plugin"
	"github.com/frei0rhost/frei0rhost/internal/plugin/goplugin"
	"github.com/frei0rhost/frei0rhost/internal/plugin/lua"
)

// addPluginFlags registers the flags every plugin-loading command shares.
func addPluginFlags(cmd *cobra.Command) {
	d := config.Default()
	cmd.Flags().StringSlice("plugin-dir", nil, "plugin search directory, repeatable (default: FREI0R_PATH then the system frei0r-1 directories)")
	cmd.Flags().StringSlice("skip", nil, "glob pattern of plugin files never loaded, repeatable (default: curves.so)")
	cmd.Flags().Bool("sandbox", d.Sandbox, "load native plugins in a child process")
	cmd.Flags().String("log-format", d.Log.Format, "log format (json or text)")
	cmd.Flags().String("log-level", d.Log.Level, "log level (debug, info, warn or error)")
}

// loadConfig reads the config file and cmd's flags, then sets up logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logging.SetDefault("frei0rhost", version, cfg.Log.Format, logging.WithLevel(level))
	return cfg, nil
}

// newOpener routes .lua candidates to the script runtime and shared objects
// to dlopen, or to a sandbox child when cfg.Sandbox is set.
func newOpener(cfg *config.Config) (plugin.Opener, error) {
	r := plugin.Router{
		Native: plugin.NativeOpener,
		Script: plugin.OpenerFunc(lua.Opener()),
	}
	if cfg.Sandbox {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate frei0rhost executable: %w", err)
		}
		r.Sandbox = goplugin.NewOpener(exe)
	}
	return r, nil
}

func newScanner(cfg *config.Config) (*plugin.Scanner, error) {
	return plugin.NewScanner(cfg.PluginDirs, plugin.WithSkip(cfg.Skip...))
}
