package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DCardGame/config"
	"DCardGame/p2p"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type playOptions struct {
	apiAddr   string
	transport string
	relayURL  string
	peerAddr  string
	retries   int
	retryWait time.Duration
}

func hostCmd(opts *globalOptions) *cobra.Command {
	return playCmd(opts, p2p.RoleHost, "host [game]", "Host a game and wait for the other player")
}

func joinCmd(opts *globalOptions) *cobra.Command {
	return playCmd(opts, p2p.RoleGuest, "join [game]", "Join a game someone is hosting")
}

func playCmd(opts *globalOptions, role p2p.Role, use, short string) *cobra.Command {
	var po playOptions

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Game.Name = args[0]
			}
			return runPlay(cfg, role, po)
		},
	}

	cmd.Flags().StringVar(&po.apiAddr, "api", "", "Control API listen address (default from config)")
	cmd.Flags().StringVar(&po.transport, "transport", "", "relay or tcp (default from config)")
	cmd.Flags().StringVar(&po.relayURL, "relay", "", "Relay URL (default from config)")
	cmd.Flags().StringVar(&po.peerAddr, "addr", "", "TCP address of the host, for the tcp transport")
	cmd.Flags().IntVar(&po.retries, "retries", 0, "Extra connection attempts before giving up")
	cmd.Flags().DurationVar(&po.retryWait, "retry-wait", 2*time.Second, "Pause between connection attempts")

	return cmd
}

// rendezvousFor builds the transport the config asks for.
func rendezvousFor(cfg *config.Config) (p2p.Rendezvous, error) {
	switch cfg.Transport.Kind {
	case "relay":
		return p2p.NewRelayTransport(cfg.Transport.RelayURL), nil
	case "tcp":
		return p2p.NewTCPTransport(cfg.Transport.Directory), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
	}
}

func runPlay(cfg *config.Config, role p2p.Role, po playOptions) error {
	if cfg.Game.Name == "" {
		return errors.New("a game name is required")
	}

	// command-line overrides
	if po.apiAddr != "" {
		cfg.API.ListenAddr = po.apiAddr
	}
	if po.transport != "" {
		cfg.Transport.Kind = po.transport
	}
	if po.relayURL != "" {
		cfg.Transport.RelayURL = po.relayURL
	}
	if po.peerAddr != "" {
		if cfg.Transport.Directory == nil {
			cfg.Transport.Directory = map[string]string{}
		}
		cfg.Transport.Directory[p2p.RendezvousID(cfg.Game.Name, p2p.RoleHost)] = po.peerAddr
	}

	rv, err := rendezvousFor(cfg)
	if err != nil {
		return err
	}

	node, err := p2p.NewNode(p2p.NodeConfig{
		Version:       cfg.Game.Version,
		GameName:      cfg.Game.Name,
		Role:          role,
		ApiListenAddr: cfg.API.ListenAddr,
		MoveInterval:  cfg.Throttle.MoveInterval,
		Width:         uint16(cfg.Game.Width),
		Height:        uint16(cfg.Game.Height),
		DeckSize:      cfg.Game.DeckSize,
	}, rv)
	if err != nil {
		return err
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for attempt := 0; ; attempt++ {
		err := node.Start(ctx)
		if err == nil || !errors.Is(err, p2p.ErrConnectionFailure) || attempt >= po.retries {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"wait":    po.retryWait,
		}).Warn("could not connect, retrying")

		select {
		case <-time.After(po.retryWait):
		case <-ctx.Done():
			return nil
		}
	}
}
