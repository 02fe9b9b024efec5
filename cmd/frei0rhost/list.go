// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/frei0rhost/frei0rhost/internal/plugin"
	"github.com/frei0rhost/frei0rhost/pkg/errutil"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// listing is one scanned candidate and what loading it revealed.
type listing struct {
	Candidate plugin.Candidate
	Name      string
	Kind      string
	Model     string
	Version   string
	Params    int
	Err       error
}

// NewListCmd creates the list subcommand.
func NewListCmd() *cobra.Command {
	var includeFailed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the plugins found in the plugin directories",
		Long: `Scan the plugin directories, load every candidate once and print its
metadata. Candidates that fail to load are left out unless
--include-failed is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			listings, err := scanPlugins(cmd.Context(), scanner, opener)
			if err != nil {
				return err
			}
			renderListings(cmd.OutOrStdout(), listings, includeFailed)
			return nil
		},
	}

	addPluginFlags(cmd)
	cmd.Flags().BoolVar(&includeFailed, "include-failed", false, "also show candidates that failed to load")

	return cmd
}

// scanPlugins loads and releases every candidate in search order.
func scanPlugins(ctx context.Context, scanner *plugin.Scanner, opener plugin.Opener) ([]listing, error) {
	candidates, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	listings := make([]listing, 0, len(candidates))
	for _, c := range candidates {
		l := listing{Candidate: c}
		l.Err = plugin.Use(opener, c.Path, func(d *plugin.Descriptor) error {
			l.Name = d.Name()
			l.Kind = d.Kind().String()
			l.Model = d.Info().ColorModel.String()
			l.Version = d.Version().String()
			l.Params = d.NumParams()
			return nil
		})
		if l.Err != nil {
			slog.Debug("candidate is not a usable plugin",
				"path", c.Path,
				"code", errutil.Code(l.Err),
				"error", l.Err)
		}
		listings = append(listings, l)
	}
	return listings, nil
}

func renderListings(w io.Writer, listings []listing, includeFailed bool) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("NAME", "KIND", "COLOR MODEL", "VERSION", "PARAMS", "PATH")

	failed := map[int]bool{}
	shown := 0
	for _, l := range listings {
		if l.Err != nil {
			if !includeFailed {
				continue
			}
			failed[shown] = true
			t.Row(l.Candidate.Name, "-", "-", "-", "-", fmt.Sprintf("%s (%s)", l.Candidate.Path, failureCode(l.Err)))
			shown++
			continue
		}
		t.Row(l.Name, l.Kind, l.Model, l.Version, strconv.Itoa(l.Params), l.Candidate.Path)
		shown++
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case failed[row]:
			return failedStyle
		default:
			return cellStyle
		}
	})

	if shown == 0 {
		fmt.Fprintln(w, dimStyle.Render("no plugins found"))
		return
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d plugins", shown)))
}

func failureCode(err error) string {
	if code := errutil.Code(err); code != "" {
		return code
	}
	return "error"
}
