// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
	"github.com/frei0rhost/frei0rhost/internal/plugin"
)

// NewInspectCmd creates the inspect subcommand.
func NewInspectCmd() *cobra.Command {
	var asSchema bool

	cmd := &cobra.Command{
		Use:   "inspect <plugin>",
		Short: "Show a plugin's metadata and parameters",
		Long: `Load one plugin, construct an instance to read its default parameter
values and print them. With --schema the parameters are printed as a
JSON Schema instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opener, err := newOpener(cfg)
			if err != nil {
				return err
			}
			scanner, err := newScanner(cfg)
			if err != nil {
				return err
			}
			path, err := scanner.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return plugin.Use(opener, path, func(d *plugin.Descriptor) error {
				mgr := plugin.NewManager(d)
				defer mgr.Close()
				if _, err := mgr.Ensure(inspectSize, inspectSize); err != nil {
					return err
				}
				values := mgr.Values()

				if asSchema {
					data, err := plugin.MarshalParamSchema(d.Info(), d.Params(), values)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return err
				}
				renderDescriptor(cmd.OutOrStdout(), d, values)
				return nil
			})
		},
	}

	addPluginFlags(cmd)
	cmd.Flags().BoolVar(&asSchema, "schema", false, "print the parameters as JSON Schema")

	return cmd
}

// inspectSize is the smallest instance size, enough to read defaults.
const inspectSize = 8

func renderDescriptor(w io.Writer, d *plugin.Descriptor, values map[int]frei0r.Value) {
	info := d.Info()
	fmt.Fprintln(w, titleStyle.Render(info.Name)+" "+dimStyle.Render(d.Version().String()))
	if info.Explanation != "" {
		fmt.Fprintln(w, info.Explanation)
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%s, %s, by %s", info.Kind, info.ColorModel, info.Author)))
	fmt.Fprintln(w, dimStyle.Render(d.Path()))

	if len(d.Params()) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no parameters"))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("#", "NAME", "KIND", "DEFAULT", "EXPLANATION").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for i, p := range d.Params() {
		t.Row(strconv.Itoa(i), p.Name, p.Kind.String(), values[i].String(), p.Explanation)
	}
	fmt.Fprintln(w, t.Render())
}
