package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	configFileName = "config.yml"

	envClusterOffset = "ARCIUM_CLUSTER_OFFSET"
	envRPCEndpoint   = "ARCDNA_RPC_ENDPOINT"
)

type Config struct {
	Network *NetworkConfig `yaml:"network"`
	Program *ProgramConfig `yaml:"program"`
	Keys    *KeyConfig     `yaml:"keys"`
	Await   *AwaitConfig   `yaml:"await"`
	MXEKey  *MXEKeyConfig  `yaml:"mxeKey"`
	DB      *DBConfig      `yaml:"db"`
	Logger  *LogConfig     `yaml:"logger"`
	LogFile string         `yaml:"logFile"`
	Metrics *MetricsConfig `yaml:"metrics"`
}

// WithDefaults returns a copy of the Config with every section populated and
// missing fields set to their default values.
func (c Config) WithDefaults() Config {
	cpy := c

	network := NetworkConfig{}
	if cpy.Network != nil {
		network = *cpy.Network
	}
	network = network.WithDefaults()
	cpy.Network = &network

	program := ProgramConfig{}
	if cpy.Program != nil {
		program = *cpy.Program
	}
	program = program.WithDefaults()
	cpy.Program = &program

	keys := KeyConfig{}
	if cpy.Keys != nil {
		keys = *cpy.Keys
	}
	keys = keys.WithDefaults()
	cpy.Keys = &keys

	await := AwaitConfig{}
	if cpy.Await != nil {
		await = *cpy.Await
	}
	await = await.WithDefaults()
	cpy.Await = &await

	mxeKey := MXEKeyConfig{}
	if cpy.MXEKey != nil {
		mxeKey = *cpy.MXEKey
	}
	mxeKey = mxeKey.WithDefaults()
	cpy.MXEKey = &mxeKey

	db := DBConfig{}
	if cpy.DB != nil {
		db = *cpy.DB
	}
	db = db.WithDefaults()
	cpy.DB = &db

	if cpy.Metrics == nil {
		cpy.Metrics = &MetricsConfig{}
	}

	return cpy
}

// NewConfig returns the default configuration for the localnet profile.
func NewConfig() *Config {
	cfg := Config{}.WithDefaults()
	return &cfg
}

// LoadConfig reads config.yml from configPath, fills defaults and applies
// environment overrides. A missing file yields the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(filepath.Join(configPath, configFileName))
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load config")
	}

	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "load config")
		}
	}

	withDefaults := cfg.WithDefaults()
	cfg = &withDefaults

	if err := cfg.applyEnv(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	if cfg.DB.Path == "" {
		cfg.DB.Path = filepath.Join(configPath, "store")
	}

	return cfg, nil
}

// SaveConfig writes the configuration to config.yml under configPath.
func SaveConfig(configPath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "save config")
	}

	if err := os.MkdirAll(configPath, 0o755); err != nil {
		return errors.Wrap(err, "save config")
	}

	return errors.Wrap(
		os.WriteFile(filepath.Join(configPath, configFileName), data, 0o600),
		"save config",
	)
}

func (c *Config) applyEnv() error {
	if value := os.Getenv(envClusterOffset); value != "" {
		offset, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return errors.Wrapf(err, "parse %s", envClusterOffset)
		}
		c.Network.ClusterOffset = uint32(offset)
	}

	if value := os.Getenv(envRPCEndpoint); value != "" {
		c.Network.RPCEndpoint = value
	}

	return nil
}
