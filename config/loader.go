package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	configName = "dcardgame"
	envPrefix  = "DCARDGAME"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("game.name", "")
	v.SetDefault("game.role", "host")
	v.SetDefault("game.width", 800)
	v.SetDefault("game.height", 480)
	v.SetDefault("game.deckSize", 60)
	v.SetDefault("game.version", "DCARDGAME V0.0.1")

	v.SetDefault("transport.kind", "relay")
	v.SetDefault("transport.relayURL", "ws://localhost:8090")
	v.SetDefault("transport.directory", map[string]string{})

	v.SetDefault("throttle.moveInterval", "100ms")

	v.SetDefault("api.listenAddr", ":3000")
	v.SetDefault("relay.listenAddr", ":8090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads dcardgame.yaml from configPath, "." or "config". A missing
// file is not an error: defaults and DCARDGAME_* variables still apply.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	// default config path
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logrus.Debug("no config file found, using defaults")
	} else {
		logrus.WithFields(logrus.Fields{
			"file": v.ConfigFileUsed(),
		}).Debug("loaded config")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	switch strings.ToLower(config.Game.Role) {
	case "host", "guest", "join":
	default:
		return fmt.Errorf("invalid game role '%s'", config.Game.Role)
	}

	if config.Game.Width <= 0 || config.Game.Width > 0xFFFF {
		return fmt.Errorf("game width %d does not fit 16 bits", config.Game.Width)
	}
	if config.Game.Height <= 0 || config.Game.Height > 0xFFFF {
		return fmt.Errorf("game height %d does not fit 16 bits", config.Game.Height)
	}
	if config.Game.DeckSize < 0 || config.Game.DeckSize > 512 {
		return fmt.Errorf("deck size %d must be between 0 and 512", config.Game.DeckSize)
	}

	if err := validateTransport(config.Transport); err != nil {
		return fmt.Errorf("invalid transport: %w", err)
	}

	if config.Throttle.MoveInterval <= 0 {
		return fmt.Errorf("move interval must be positive, got %s", config.Throttle.MoveInterval)
	}

	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return err
	}
	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format '%s'", config.Log.Format)
	}

	return nil
}

func validateTransport(t TransportConfig) error {
	switch t.Kind {
	case "relay":
		if t.RelayURL == "" {
			return fmt.Errorf("relay transport needs relayURL")
		}
	case "tcp":
		for id, addr := range t.Directory {
			if addr == "" {
				return fmt.Errorf("directory entry '%s' has no address", id)
			}
		}
	default:
		return fmt.Errorf("unknown kind '%s'", t.Kind)
	}
	return nil
}

// ApplyLogging applies the log section to the standard logrus logger.
func (c *Config) ApplyLogging() error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	if c.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
