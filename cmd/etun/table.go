package main

import (
	"fmt"
	"text/tabwriter"

	"etun"
	"github.com/spf13/cobra"
)

func newTableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "table",
		Short: "Print the EtherType catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tETHERTYPE\tPROTOCOL")
			for _, entry := range a.table.Entries() {
				etherType := etun.NewEtherType(entry.EtherType)
				fmt.Fprintf(w, "%d\t0x%04x\t%s\n", entry.CompactId, entry.EtherType, etherType.Name())
			}
			fmt.Fprintf(w, "\nfingerprint %08x, %d entries\n", a.table.Fingerprint(), a.table.Len())
			return w.Flush()
		},
	}
}
