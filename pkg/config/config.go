package config

// Package config provides a reusable loader for cesium configuration
// files and environment variables.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/OnlyF0uR/cesium/pkg/utils"
)

// Config mirrors the structure of the YAML files under cmd/config.
type Config struct {
	Node struct {
		KeyDir     string `mapstructure:"key_dir" yaml:"key_dir" json:"key_dir"`
		ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr" json:"listen_addr"`
	} `mapstructure:"node" yaml:"node" json:"node"`

	Mempool struct {
		PackIntervalCount int     `mapstructure:"pack_interval_count" yaml:"pack_interval_count" json:"pack_interval_count"`
		PackMinRefs       uint32  `mapstructure:"pack_min_refs" yaml:"pack_min_refs" json:"pack_min_refs"`
		PackProportion    float64 `mapstructure:"pack_proportion" yaml:"pack_proportion" json:"pack_proportion"`
	} `mapstructure:"mempool" yaml:"mempool" json:"mempool"`

	Runtime struct {
		CompUnitLimitPerFunc uint64 `mapstructure:"compunit_limit_per_func" yaml:"compunit_limit_per_func" json:"compunit_limit_per_func"`
		InstrLimitPerFunc    uint32 `mapstructure:"instr_limit_per_func" yaml:"instr_limit_per_func" json:"instr_limit_per_func"`
	} `mapstructure:"runtime" yaml:"runtime" json:"runtime"`

	Storage struct {
		DBPath string `mapstructure:"db_path" yaml:"db_path" json:"db_path"`
	} `mapstructure:"storage" yaml:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" yaml:"level" json:"level"`
		JSON  bool   `mapstructure:"json" yaml:"json" json:"json"`
	} `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.Node.KeyDir = ""
	c.Node.ListenAddr = ":8799"
	c.Mempool.PackIntervalCount = 2500
	c.Mempool.PackMinRefs = 5
	c.Mempool.PackProportion = 0.45
	c.Runtime.CompUnitLimitPerFunc = 2400
	c.Runtime.InstrLimitPerFunc = 1800
	c.Storage.DBPath = ".cesiumdb"
	c.Logging.Level = "info"
	return c
}

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")

	AppConfig = Default()
	if err := viper.ReadInConfig(); err != nil {
		// A missing default file is not fatal; the built-in values hold.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
			}
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CESIUM_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CESIUM_ENV", ""))
}

// WriteDefault materialises the built-in configuration as a YAML file,
// creating parent directories as needed.
func WriteDefault(path string) error {
	c := Default()
	raw, err := yaml.Marshal(&c)
	if err != nil {
		return utils.Wrap(err, "marshal default config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return utils.Wrap(err, "create config dir")
	}
	return utils.Wrap(os.WriteFile(path, raw, 0o644), "write default config")
}
