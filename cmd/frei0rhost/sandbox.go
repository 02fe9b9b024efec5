// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/frei0rhost/frei0rhost/internal/logging"
	"github.com/frei0rhost/frei0rhost/internal/plugin"
	"github.com/frei0rhost/frei0rhost/internal/plugin/goplugin"
)

// NewSandboxCmd creates the hidden sandbox subcommand. The host re-executes
// itself with it to load a native plugin in a child process; stdout belongs
// to the go-plugin handshake, so logs go to stderr.
func NewSandboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "sandbox <plugin>",
		Short:  "Serve one native plugin to a parent host",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			logging.SetDefault("frei0rhost-sandbox", version, "json")
			slog.Debug("sandbox starting", "plugin", args[0])
			goplugin.Serve(plugin.NativeOpener.Open)
			return nil
		},
	}
}
