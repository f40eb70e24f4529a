// Package config provides Viper-based configuration management for imgembed
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/neurlang/imgembed/datasets/imagedir"
	"github.com/neurlang/imgembed/device"
	"github.com/neurlang/imgembed/net/resnet"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "IMGEMBED"

// Config holds every setting of an extraction run.
type Config struct {
	Input      string `mapstructure:"input"`
	Weights    string `mapstructure:"weights"`
	Arch       string `mapstructure:"arch"`
	Size       int    `mapstructure:"size"`
	Batch      int    `mapstructure:"batch"`
	Workers    int    `mapstructure:"workers"`
	Normalize  bool   `mapstructure:"normalize"`
	SkipHidden bool   `mapstructure:"skip_hidden"`

	Embeddings string `mapstructure:"embeddings"`
	Paths      string `mapstructure:"paths"`
	SQLite     string `mapstructure:"sqlite"`

	TopK int `mapstructure:"top_k"`

	Verbose    bool   `mapstructure:"verbose"`
	CPUProfile string `mapstructure:"cpuprofile"`
}

// Images returns the loader options described by c.
func (c *Config) Images() imagedir.Options {
	o := imagedir.DefaultOptions()
	o.Size = c.Size
	o.Normalize = c.Normalize
	o.SkipHidden = c.SkipHidden
	o.Workers = c.Workers
	return o
}

// Load reads .env, the config file and IMGEMBED_* environment variables, in
// increasing order of precedence below any flags attached by bind.
func Load(cfgFile string, bind func(*viper.Viper) error) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".imgembed")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/imgembed")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if bind != nil {
		if err := bind(v); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.Workers == 0 {
		cfg.Workers = device.Detect().Workers()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input", "uploader")
	v.SetDefault("weights", "no_fc_model_state_dict.pt")
	v.SetDefault("arch", resnet.DefaultArch)
	v.SetDefault("size", imagedir.DefaultSize)
	v.SetDefault("batch", 0)
	v.SetDefault("workers", 0)
	v.SetDefault("normalize", false)
	v.SetDefault("skip_hidden", true)

	v.SetDefault("embeddings", "image_features_embedding.npy")
	v.SetDefault("paths", "img_files.json")
	v.SetDefault("sqlite", "")

	v.SetDefault("top_k", 5)

	v.SetDefault("verbose", false)
	v.SetDefault("cpuprofile", "")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := resnet.ConfigFor(c.Arch); err != nil {
		return err
	}
	if c.Size <= 0 {
		return fmt.Errorf("size %d must be positive", c.Size)
	}
	if c.Batch < 0 {
		return fmt.Errorf("batch %d must not be negative", c.Batch)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers %d must not be negative", c.Workers)
	}
	if c.TopK < 0 {
		return fmt.Errorf("top_k %d must not be negative", c.TopK)
	}
	if c.Embeddings == "" || c.Paths == "" {
		return fmt.Errorf("both output paths must be set")
	}
	if c.Embeddings == c.Paths {
		return fmt.Errorf("embeddings and paths both point to %s", c.Paths)
	}
	return nil
}
