package main

import (
	"etun/client"
	"github.com/spf13/cobra"
)

func newConnectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Attach a TAP device to a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.serverOverride != "" {
				a.cfg.Client.Server = a.serverOverride
			}

			cl, err := client.New(a.cfg.Client, a.table)
			if err != nil {
				return err
			}
			defer cl.Close()

			return cl.Run()
		},
	}

	cmd.Flags().StringVar(&a.serverOverride, "server", "", "server address, overrides client.server")
	return cmd
}
