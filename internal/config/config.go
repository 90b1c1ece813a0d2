package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Server Server `mapstructure:"server"`
	LLM    LLM    `mapstructure:"llm"`
	Store  Store  `mapstructure:"store"`
	Feed   Feed   `mapstructure:"feed"`
	Hub    Hub    `mapstructure:"hub"`
	Rate   Rate   `mapstructure:"rate"`
	Log    Log    `mapstructure:"log"`
}

// Server holds the HTTP server configuration.
type Server struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// LLM holds the generation backend configuration.
type LLM struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// Store selects and configures the summary store backend.
type Store struct {
	// Backend is one of "memory", "sqlite" or "pebble".
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// Feed holds the feed cache configuration.
type Feed struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Hub holds the live-update broadcast configuration.
type Hub struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

// Rate holds the per-client API rate limit.
type Rate struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Log holds the logging configuration.
type Log struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration from config.yaml, with INTELVERSE_*
// environment variables taking precedence over file values.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	}
	viper.SetEnvPrefix("intelverse")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("feed.cache_ttl", time.Minute)
	viper.SetDefault("hub.poll_interval", 5*time.Second)
	viper.SetDefault("hub.batch_size", 50)
	viper.SetDefault("rate.rps", 10)
	viper.SetDefault("rate.burst", 20)
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		// The config file is optional: defaults plus env are enough to run.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
