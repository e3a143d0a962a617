package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Hub     HubConfig     `mapstructure:"hub"`
	Console ConsoleConfig `mapstructure:"console"`
}

// HubConfig holds inventory hub connection settings.
type HubConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ConsoleConfig holds the default working context and presentation
// settings for the reconciliation grid.
type ConsoleConfig struct {
	Supplier   string `mapstructure:"supplier"`
	Shop       string `mapstructure:"shop"`
	PageSize   int    `mapstructure:"page_size"`
	FetchLimit int    `mapstructure:"fetch_limit"`
	DateFormat string `mapstructure:"date_format"`
	Currency   string `mapstructure:"currency"`
}

// Load reads configuration from file and env. Env var overrides use prefix RECONSOLE_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("hub.base_url", "http://127.0.0.1:8787")
	v.SetDefault("hub.timeout_seconds", 30)
	v.SetDefault("console.supplier", "paul-lange")
	v.SetDefault("console.shop", "biketrek")
	v.SetDefault("console.page_size", 25)
	v.SetDefault("console.fetch_limit", 400)
	v.SetDefault("console.date_format", "02.01.2006")
	v.SetDefault("console.currency", "€")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("RECONSOLE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "reconsole"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("RECONSOLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory
// if needed. Used by the settings view for context switches the operator
// wants to keep.
func Save(cfg Config) error {
	path := os.Getenv("RECONSOLE_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "reconsole", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("hub.base_url", cfg.Hub.BaseURL)
	v.Set("hub.timeout_seconds", cfg.Hub.TimeoutSeconds)
	v.Set("console.supplier", cfg.Console.Supplier)
	v.Set("console.shop", cfg.Console.Shop)
	v.Set("console.page_size", cfg.Console.PageSize)
	v.Set("console.fetch_limit", cfg.Console.FetchLimit)
	v.Set("console.date_format", cfg.Console.DateFormat)
	v.Set("console.currency", cfg.Console.Currency)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
