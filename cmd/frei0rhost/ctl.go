// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/frei0rhost/frei0rhost/internal/config"
	"github.com/frei0rhost/frei0rhost/internal/control"
)

// NewCtlCmd creates the ctl subcommand, a client for a running host's
// control socket.
func NewCtlCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running frei0rhost",
		Long: `Talk to the control socket of a running "frei0rhost run": show its
status, switch plugins, resize the output or stop it.`,
	}
	cmd.PersistentFlags().StringVar(&name, "name", config.DefaultControl, "control socket name of the host")

	client := func() *control.Client { return control.NewClient(control.SocketPath(name)) }

	var jsonOutput bool
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the host's status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := client().Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("host %q is not reachable: %w", name, err)
			}
			if jsonOutput {
				data, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal status: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			renderStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	status.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")

	sel := &cobra.Command{
		Use:   "select <plugin>",
		Short: `Switch to another plugin ("none" unloads)`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().Select(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("requested %s\n", args[0])
			return nil
		},
	}

	resize := &cobra.Command{
		Use:   "resize <width> <height>",
		Short: "Change the output size",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			width, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid width %q: %w", args[0], err)
			}
			height, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid height %q: %w", args[1], err)
			}
			if err := client().Resize(cmd.Context(), width, height); err != nil {
				return err
			}
			cmd.Printf("requested %dx%d\n", width, height)
			return nil
		},
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Shut the host down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := client().Shutdown(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("shutdown initiated")
			return nil
		},
	}

	cmd.AddCommand(status, sel, resize, stop)
	return cmd
}

func renderStatus(w io.Writer, st control.StatusResponse) {
	active := st.Plugin.Active
	if active == "" {
		active = "-"
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(_, col int) lipgloss.Style {
			if col == 0 {
				return headerStyle
			}
			return cellStyle
		}).
		Row("name", st.Name).
		Row("pid", strconv.Itoa(st.PID)).
		Row("uptime", formatUptime(st.UptimeSeconds)).
		Row("requested", st.Plugin.Requested).
		Row("active", active).
		Row("plugin", st.Plugin.Name).
		Row("size", fmt.Sprintf("%dx%d", st.Plugin.Width, st.Plugin.Height))
	fmt.Fprintln(w, t.Render())
}

// formatUptime formats seconds into a human-readable duration.
func formatUptime(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}
