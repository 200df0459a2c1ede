package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is everything the server reads from its environment.
type Config struct {
	Addr          string        `mapstructure:"addr"`
	DSN           string        `mapstructure:"dsn"`
	LogLevel      string        `mapstructure:"log_level"`
	ReadyTimeout  time.Duration `mapstructure:"ready_timeout"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
	QueueSize     int           `mapstructure:"queue_size"`
}

// Load reads config.yaml from the working directory (optional) with
// HOLDEM_* environment overrides on top.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("addr", ":8080")
	v.SetDefault("dsn", "holdem.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("ready_timeout", 30*time.Second)
	v.SetDefault("action_timeout", time.Duration(0))
	v.SetDefault("queue_size", 32)

	v.SetEnvPrefix("HOLDEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
