package main

import (
	"fmt"
	"strconv"

	"etun"
	"github.com/spf13/cobra"
)

func newLookupCmd(a *app) *cobra.Command {
	var byId bool

	cmd := &cobra.Command{
		Use:   "lookup <ethertype|id>",
		Short: "Translate an EtherType into its compact id, or back with --id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if byId {
				id, err := strconv.ParseUint(args[0], 0, 8)
				if err != nil {
					return fmt.Errorf("invalid compact id %q: %w", args[0], err)
				}
				etherType, err := a.table.EtherType(uint8(id))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), etun.NewEtherType(etherType).String())
				return nil
			}

			v, err := strconv.ParseUint(args[0], 0, 16)
			if err != nil {
				return fmt.Errorf("invalid ethertype %q: %w", args[0], err)
			}
			id, err := a.table.CompactId(uint16(v))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&byId, "id", false, "argument is a compact id")
	return cmd
}
