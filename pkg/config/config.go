// Package config provides YAML-based configuration loading for peerbus.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"peerbus/pkg/protocol"
)

// Config is the root application configuration for a peerbus node.
type Config struct {
	// NodeName is this process's peer name, as used in message Source and
	// by peers in their address tables.
	NodeName string `mapstructure:"node_name"`

	// Protocol selects the transport: tcp, quic, mem.
	Protocol string `mapstructure:"protocol"`

	// SendTimeoutMS bounds each send/broadcast in milliseconds; -1 means
	// no timeout.
	SendTimeoutMS int `mapstructure:"send_timeout_ms"`

	// ReceiveTimeoutMS bounds each receive wait in milliseconds; -1 means
	// no timeout.
	ReceiveTimeoutMS int `mapstructure:"receive_timeout_ms"`

	// Log holds logging configuration.
	Log LogConfig `mapstructure:"log"`

	// Peers is a static peer address table (peer name -> channel kind ->
	// address), standing in for an external discovery service.
	Peers map[string]map[string]string `mapstructure:"peers"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		NodeName:         "peerbus-node",
		Protocol:         "tcp",
		SendTimeoutMS:    -1,
		ReceiveTimeoutMS: -1,
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/peerbus.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from the provided path (if non-empty), otherwise
// from ./peerbus.yaml when present, with environment overrides. Environment
// variables use the prefix PEERBUS and `.`/`-` are replaced with `_`.
// Example: PEERBUS_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PEERBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("node_name", cfg.NodeName)
	v.SetDefault("protocol", cfg.Protocol)
	v.SetDefault("send_timeout_ms", cfg.SendTimeoutMS)
	v.SetDefault("receive_timeout_ms", cfg.ReceiveTimeoutMS)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if _, err := os.Stat("peerbus.yaml"); err == nil {
		v.SetConfigFile("peerbus.yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config peerbus.yaml: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.NodeName) == "" {
		return fmt.Errorf("config: node_name must not be empty")
	}
	switch c.Protocol {
	case "tcp", "quic", "mem":
	default:
		return fmt.Errorf("config: unknown protocol %q", c.Protocol)
	}
	if _, err := c.PeerTable(); err != nil {
		return err
	}
	return nil
}

// SendTimeout converts SendTimeoutMS to a duration; negative means no timeout.
func (c *Config) SendTimeout() time.Duration { return msToDuration(c.SendTimeoutMS) }

// ReceiveTimeout converts ReceiveTimeoutMS to a duration; negative means no
// timeout.
func (c *Config) ReceiveTimeout() time.Duration { return msToDuration(c.ReceiveTimeoutMS) }

func msToDuration(ms int) time.Duration {
	if ms < 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

// PeerTable converts the static peers section into the driver's
// address-exchange format.
func (c *Config) PeerTable() (protocol.PeerAddressTable, error) {
	out := make(protocol.PeerAddressTable, len(c.Peers))
	for name, kinds := range c.Peers {
		am := make(protocol.AddressMap, len(kinds))
		for ks, addr := range kinds {
			var k protocol.ChannelKind
			if err := k.UnmarshalText([]byte(ks)); err != nil {
				return nil, fmt.Errorf("config: peer %s: %w", name, err)
			}
			am[k] = addr
		}
		out[name] = am
	}
	return out, nil
}
