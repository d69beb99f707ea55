package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"DCardGame/relay"

	"github.com/spf13/cobra"
)

func relayCmd(opts *globalOptions) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a relay that pairs hosts with their guests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.Relay.ListenAddr = listenAddr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := relay.NewServer(relay.ServerConfig{
				Version:    cfg.Game.Version,
				ListenAddr: cfg.Relay.ListenAddr,
			})
			return s.Start(ctx)
		},
	}

	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (default from config)")

	return cmd
}
