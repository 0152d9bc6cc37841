// Package config loads node configuration from a YAML file, environment
// variables, and a .env file, in that precedence order (env overrides file).
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/synledger/fullnode/pkg/utils"
)

// Role selects which forks a node's NetChannel will track. Mirrors
// core.NodeRole.
type Role string

const (
	RoleBackbone  Role = "backbone"
	RoleFork      Role = "fork"
	RoleConsensus Role = "consensus"
)

// Config is the unified configuration for a node process.
type Config struct {
	Network struct {
		Role           Role     `mapstructure:"role" json:"role"`
		MagicNumber    uint32   `mapstructure:"magic_number" json:"magic_number"`
		ProtocolVer    uint32   `mapstructure:"protocol_version" json:"protocol_version"`
		GenesisHash    string   `mapstructure:"genesis_hash" json:"genesis_hash"`
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
		DiscoveryTag   string   `mapstructure:"discovery_tag" json:"discovery_tag"`
	} `mapstructure:"network" json:"network"`

	Scheduler struct {
		MaxInvCount     int `mapstructure:"max_inv_count" json:"max_inv_count"`
		MaxPeerBlockInv int `mapstructure:"max_peer_block_inv" json:"max_peer_block_inv"`
		MaxPeerTxInv    int `mapstructure:"max_peer_tx_inv" json:"max_peer_tx_inv"`
		MaxRegetData    int `mapstructure:"max_regetdata" json:"max_regetdata"`
		MaxInvWaitSec   int `mapstructure:"max_inv_wait_sec" json:"max_inv_wait_sec"`
		MaxObjWaitSec   int `mapstructure:"max_obj_wait_sec" json:"max_obj_wait_sec"`
	} `mapstructure:"scheduler" json:"scheduler"`

	TxPool struct {
		CacheHeightInterval int    `mapstructure:"cache_height_interval" json:"cache_height_interval"`
		DataPath            string `mapstructure:"data_path" json:"data_path"`
	} `mapstructure:"txpool" json:"txpool"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded by Load or LoadFromEnv.
var AppConfig Config

func setDefaults() {
	viper.SetDefault("network.role", string(RoleBackbone))
	viper.SetDefault("network.magic_number", 0x5ed1d1a1)
	viper.SetDefault("network.protocol_version", 1)
	viper.SetDefault("network.listen_addr", "/ip4/0.0.0.0/tcp/0")
	viper.SetDefault("network.discovery_tag", "fullnode-mdns")

	viper.SetDefault("scheduler.max_inv_count", 262144)
	viper.SetDefault("scheduler.max_peer_block_inv", 1024)
	viper.SetDefault("scheduler.max_peer_tx_inv", 262144)
	viper.SetDefault("scheduler.max_regetdata", 10)
	viper.SetDefault("scheduler.max_inv_wait_sec", 3600)
	viper.SetDefault("scheduler.max_obj_wait_sec", 7200)

	viper.SetDefault("txpool.cache_height_interval", 23)
	viper.SetDefault("txpool.data_path", "data/txpool.dat")

	viper.SetDefault("logging.level", "info")
}

// Load reads config/<env>.yaml (or config/default.yaml when env is empty),
// merges a .env file and process environment on top, and unmarshals the
// result into AppConfig.
func Load(env string) (*Config, error) {
	_ = godotenv.Load()

	setDefaults()
	viper.SetConfigType("yaml")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")

	name := "default"
	if env != "" {
		name = env
	}
	viper.SetConfigName(name)
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, utils.Wrap(err, "load config")
		}
	}

	viper.SetEnvPrefix("FULLNODE")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the FULLNODE_ENV environment
// variable to select the overlay file.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("FULLNODE_ENV", ""))
}

// Validate checks invariants Load cannot express through mapstructure tags
// alone.
func (c *Config) Validate() error {
	switch c.Network.Role {
	case RoleBackbone, RoleFork, RoleConsensus:
	default:
		return fmt.Errorf("config: unknown network.role %q", c.Network.Role)
	}
	if c.Scheduler.MaxPeerTxInv > c.Scheduler.MaxInvCount {
		return fmt.Errorf("config: scheduler.max_peer_tx_inv cannot exceed scheduler.max_inv_count")
	}
	return nil
}
