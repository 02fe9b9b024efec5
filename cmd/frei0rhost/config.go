// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frei0rhost/frei0rhost/internal/config"
	"github.com/frei0rhost/frei0rhost/internal/xdg"
)

// NewConfigCmd creates the config subcommand and its children.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration files",
	}
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return fmt.Errorf("failed to generate schema: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return err
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file without running anything",
		Long: `Validates a config file against the config schema and the value
checks applied at startup. Without an argument the --config file, or the
default XDG location, is validated.

Useful in CI pipelines:
  frei0rhost config validate deploy/config.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = xdg.ConfigFile()
			}
			return runConfigValidate(cmd, path)
		},
	}
}

func runConfigValidate(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := config.ValidateSchema(data); err != nil {
		return fmt.Errorf("%s: %s", path, config.FormatSchemaError(err))
	}
	if _, err := config.Load(path, nil); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	cmd.Printf("%s is valid\n", path)
	return nil
}
