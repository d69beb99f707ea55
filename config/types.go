package config

import "time"

// GameConfig names the table this node joins and how it is laid out.
type GameConfig struct {
	Name     string `mapstructure:"name"`
	Role     string `mapstructure:"role"` // host or guest
	Width    int    `mapstructure:"width"`
	Height   int    `mapstructure:"height"`
	DeckSize int    `mapstructure:"deckSize"`
	Version  string `mapstructure:"version"`
}

// TransportConfig selects how the two players find each other.
type TransportConfig struct {
	Kind     string `mapstructure:"kind"` // relay or tcp
	RelayURL string `mapstructure:"relayURL"`
	// Directory maps rendezvous ids to host:port for the tcp transport.
	Directory map[string]string `mapstructure:"directory"`
}

type ThrottleConfig struct {
	MoveInterval time.Duration `mapstructure:"moveInterval"`
}

type APIConfig struct {
	ListenAddr string `mapstructure:"listenAddr"`
}

type RelayConfig struct {
	ListenAddr string `mapstructure:"listenAddr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// Config is the whole dcardgame.yaml.
type Config struct {
	Game      GameConfig      `mapstructure:"game"`
	Transport TransportConfig `mapstructure:"transport"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
	API       APIConfig       `mapstructure:"api"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Log       LogConfig       `mapstructure:"log"`
}
