package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Catalog   CatalogConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Search    SearchConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CatalogConfig holds product catalog database configuration
type CatalogConfig struct {
	Driver         string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN            string `mapstructure:"dsn"`
	RetryAttempts  uint   `mapstructure:"retry_attempts"`
	CandidateLimit int    `mapstructure:"candidate_limit"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
	Burst int `mapstructure:"burst"`
}

// SearchConfig holds ranking configuration
type SearchConfig struct {
	DefaultTopN        int  `mapstructure:"default_top_n"`
	MaxTopN            int  `mapstructure:"max_top_n"`
	EnableDebugLogging bool `mapstructure:"enable_debug_logging"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shopassist/")

	// Environment variable settings: SHOPASSIST_CACHE_REDIS_URL -> cache.redis_url
	v.SetEnvPrefix("SHOPASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values. Every key needs a default so
// AutomaticEnv can bind it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Catalog defaults
	v.SetDefault("catalog.driver", "sqlite")
	v.SetDefault("catalog.dsn", "data/catalog.db")
	v.SetDefault("catalog.retry_attempts", 3)
	v.SetDefault("catalog.candidate_limit", 200)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "5m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.burst", 20)

	// Search defaults
	v.SetDefault("search.default_top_n", 3)
	v.SetDefault("search.max_top_n", 5)
	v.SetDefault("search.enable_debug_logging", false)

	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Catalog.Driver != "sqlite" && config.Catalog.Driver != "postgres" {
		return fmt.Errorf("catalog driver must be 'sqlite' or 'postgres', got: %s", config.Catalog.Driver)
	}

	if config.Catalog.DSN == "" {
		return fmt.Errorf("catalog DSN is required (set SHOPASSIST_CATALOG_DSN)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Search.MaxTopN < 1 {
		return fmt.Errorf("search max_top_n must be at least 1, got: %d", config.Search.MaxTopN)
	}

	if config.Search.DefaultTopN < 1 || config.Search.DefaultTopN > config.Search.MaxTopN {
		return fmt.Errorf("search default_top_n must be between 1 and %d, got: %d",
			config.Search.MaxTopN, config.Search.DefaultTopN)
	}

	if config.RateLimit.PerIP < 1 {
		return fmt.Errorf("rate limit per_ip must be positive, got: %d", config.RateLimit.PerIP)
	}

	if _, err := log.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", config.Log.Level, err)
	}

	return nil
}
