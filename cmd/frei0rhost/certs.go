// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"github.com/spf13/cobra"

	bustls "github.com/frei0rhost/frei0rhost/internal/tls"
	"github.com/frei0rhost/frei0rhost/internal/xdg"
)

// NewCertsCmd creates the certs subcommand.
func NewCertsCmd() *cobra.Command {
	var (
		dir   string
		hosts []string
	)

	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Create frame bus mTLS certificates",
		Long: `Create a bus CA and a peer certificate for securing the frame bus with
mutual TLS. Existing files are kept. To join another machine to the same
bus, copy root-ca.crt and root-ca.key into its certs directory and run
this command there; pass the result to "run --bus-certs".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wrote, err := bustls.Ensure(dir, hosts...)
			if err != nil {
				return err
			}
			busID, err := bustls.BusID(dir)
			if err != nil {
				return err
			}
			if wrote {
				cmd.Printf("certificates written to %s (bus %s)\n", dir, busID)
			} else {
				cmd.Printf("certificates already present in %s (bus %s)\n", dir, busID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", xdg.CertsDir(), "certificates directory")
	cmd.Flags().StringSliceVar(&hosts, "host", nil, "extra host name or IP the peer certificate covers, repeatable")

	return cmd
}
