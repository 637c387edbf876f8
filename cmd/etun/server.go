package main

import (
	"os"
	"os/signal"
	"syscall"

	"etun/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the virtual switch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := server.New(a.cfg.Server, a.table)
			if err != nil {
				return err
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			go func() {
				s := <-sig
				log.WithField("signal", s.String()).Info("shutting down server")
				_ = srv.Close()
			}()

			return srv.Run()
		},
	}
}
