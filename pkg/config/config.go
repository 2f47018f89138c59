package config

// Package config provides a reusable loader for cardanogo node
// configuration files and environment variables. It is versioned so
// that applications can depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"cardanogo/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// PeerConfig names one configured sync peer.
type PeerConfig struct {
	Alias string `mapstructure:"alias" json:"alias"`
	Addr  string `mapstructure:"addr" json:"addr"`
}

// Config represents the unified configuration for a cardanogo node. It
// mirrors the structure of the YAML files under cmd/config.
type Config struct {
	Network struct {
		ProtocolMagic       uint32 `mapstructure:"protocol_magic" json:"protocol_magic"`
		GenesisPrev         string `mapstructure:"genesis_prev" json:"genesis_prev"`
		EpochSlots          uint64 `mapstructure:"epoch_slots" json:"epoch_slots"`
		EpochStabilityDepth uint64 `mapstructure:"epoch_stability_depth" json:"epoch_stability_depth"`
		ListenAddr          string `mapstructure:"listen_addr" json:"listen_addr"`
		DiscoveryTag        string `mapstructure:"discovery_tag" json:"discovery_tag"`
	} `mapstructure:"network" json:"network"`

	Peers []PeerConfig `mapstructure:"peers" json:"peers"`

	Storage struct {
		Root string `mapstructure:"root" json:"root"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`

	Metrics struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"metrics" json:"metrics"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CARDANOGO_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CARDANOGO_ENV", ""))
}
