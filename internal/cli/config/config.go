package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conduit-lang/smokescreen/pkg/smokescreen"
)

// EnvPrefix is prepended to every environment override, e.g.
// SMOKESCREEN_DATABASE_URL for database.url
const EnvPrefix = "SMOKESCREEN"

// Config represents the smokescreen CLI configuration
type Config struct {
	Transformers      TransformersConfig `mapstructure:"transformers"`
	IncludeKey        string             `mapstructure:"include_key"`
	DefaultSerializer string             `mapstructure:"default_serializer"`
	Database          DatabaseConfig     `mapstructure:"database"`
	Cache             CacheConfig        `mapstructure:"cache"`
	Server            ServerConfig       `mapstructure:"server"`
	Log               LogConfig          `mapstructure:"log"`
}

// TransformersConfig controls transformer identifier resolution
type TransformersConfig struct {
	Namespace    string `mapstructure:"namespace"`
	NameTemplate string `mapstructure:"name_template"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// CacheConfig configures the column metadata cache. An empty RedisAddr
// keeps the cache in memory.
type CacheConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
	Prefix    string        `mapstructure:"prefix"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures the CLI logger
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads smokescreen.yml from path (a file, or a directory searched
// for smokescreen.yml / smokescreen.yaml). A missing file is not an error.
// Environment variables prefixed with SMOKESCREEN_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("transformers.namespace", "transformers")
	v.SetDefault("transformers.name_template", "{ModelName}Transformer")
	v.SetDefault("include_key", smokescreen.DefaultIncludeKey)
	v.SetDefault("default_serializer", "")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.url", "")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.prefix", "smokescreen:")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("log.level", "info")

	if strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml") {
		v.SetConfigFile(path)
	} else {
		if path == "" {
			path = "."
		}
		v.SetConfigName("smokescreen")
		v.SetConfigType("yaml")
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ToSmokescreen converts the CLI configuration into the facade config
func (c *Config) ToSmokescreen() smokescreen.Config {
	cfg := smokescreen.Config{
		Namespace:    c.Transformers.Namespace,
		NameTemplate: c.Transformers.NameTemplate,
		IncludeKey:   c.IncludeKey,
	}
	if c.DefaultSerializer != "" {
		cfg.DefaultSerializer = c.DefaultSerializer
	}
	return cfg
}

func validateConfig(cfg *Config) error {
	if err := cfg.ToSmokescreen().Validate(); err != nil {
		return fmt.Errorf("invalid transformers config: %w", err)
	}

	switch cfg.Database.Driver {
	case "sqlite3", "pgx", "postgres":
	default:
		return fmt.Errorf("database.driver must be one of sqlite3, pgx or postgres, got: %s", cfg.Database.Driver)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got: %s", cfg.Cache.TTL)
	}
	return nil
}
