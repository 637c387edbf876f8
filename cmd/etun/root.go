package main

import (
	"etun"
	"etun/config"
	"etun/logging"
	"github.com/spf13/cobra"
)

// app holds what every subcommand needs once the configuration is loaded.
type app struct {
	configFile     string
	serverOverride string

	cfg   *config.Config
	table *etun.EtherTypeTable
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "etun",
		Short: "Ethernet over TCP tunnel with compact EtherTypes",
		Long: `etun bridges TAP devices of several hosts through a central virtual switch.
Frames travel over TCP with their EtherType shrunk to a one byte id whenever
it is part of the configured catalog.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(newServerCmd(a))
	rootCmd.AddCommand(newConnectCmd(a))
	rootCmd.AddCommand(newTableCmd(a))
	rootCmd.AddCommand(newLookupCmd(a))

	return rootCmd
}

func (a *app) load() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}

	if err := logging.Setup(cfg.Log); err != nil {
		return err
	}

	table, err := cfg.Table()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.table = table
	return nil
}
