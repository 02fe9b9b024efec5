// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the frei0rhost CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frei0rhost",
		Short: "frei0rhost - run frei0r video effects as frame sources",
		Long: `frei0rhost loads frei0r effect plugins (native shared objects or Lua
scripts), drives one at a time at a fixed rate and publishes every frame
it renders on a frame bus.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/frei0rhost/config.yaml)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewInspectCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewCtlCmd())
	cmd.AddCommand(NewCertsCmd())
	cmd.AddCommand(NewSandboxCmd())

	return cmd
}
