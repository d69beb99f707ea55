package main

import (
	"fmt"
	"os"

	"DCardGame/config"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

// loadConfig reads the config and sets up logging from it.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.ApplyLogging(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "dcardgame",
		Short: "A two-player card table kept in sync peer to peer",
		Long: `dcardgame runs one player's side of a shared card table.

One player hosts a named game, the other joins it by the same name.
Both sides talk through a relay or directly over TCP; every move,
tap and draw is sent as a small bit-packed frame.

Examples:
  dcardgame relay
  dcardgame host friday
  dcardgame join friday --relay ws://relay.example:8090`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Directory holding dcardgame.yaml")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (default from config)")

	rootCmd.AddCommand(
		hostCmd(opts),
		joinCmd(opts),
		relayCmd(opts),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
