// Package config loads application configuration with viper from a config
// file or environment variables.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Upstream UpstreamConfig
	Scrape   ScrapeConfig
}

// ServerConfig defines the HTTP listener settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// DatabaseConfig defines the PostgreSQL connection. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig defines the optional read-through cache.
type RedisConfig struct {
	URL        string `mapstructure:"url"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// UpstreamConfig defines the external data sources. All exchange endpoints
// are reached through the relay proxy.
type UpstreamConfig struct {
	ProxyURL        string `mapstructure:"proxy_url"`
	TransactionsURL string `mapstructure:"transactions_url"`
	IceURL          string `mapstructure:"ice_url"`
	DastyarURL      string `mapstructure:"dastyar_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// ScrapeConfig defines the global-price scraper behaviour.
type ScrapeConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MinPrice          float64 `mapstructure:"min_price"` // USD/mt plausibility bounds
	MaxPrice          float64 `mapstructure:"max_price"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and env vars apply.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("redis.ttl_seconds", 30)
	viper.SetDefault("upstream.proxy_url", "https://prx.darkube.app/proxy")
	viper.SetDefault("upstream.transactions_url",
		"https://www.ime.co.ir/subsystems/ime/services/home/imedata.asmx/GetAmareMoamelatList")
	viper.SetDefault("upstream.ice_url", "https://api.ice.ir/api/v1")
	viper.SetDefault("upstream.dastyar_url", "https://api.dastyar.io/express/financial-item")
	viper.SetDefault("upstream.timeout_seconds", 15)
	viper.SetDefault("scrape.requests_per_minute", 6)
	viper.SetDefault("scrape.min_price", 100)
	viper.SetDefault("scrape.max_price", 10000)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
