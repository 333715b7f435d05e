package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cache backends
const (
	CacheRedis  = "redis"
	CacheBadger = "badger"
)

// Config holds all configuration for the shop backend
type Config struct {
	// Database Configuration
	DatabaseHost            string
	DatabasePort            string
	DatabaseUser            string
	DatabasePass            string
	DatabaseName            string
	DatabaseSSLMode         string
	DatabaseMaxOpenConns    int
	DatabaseMaxIdleConns    int
	DatabaseConnectAttempts int
	DatabaseSeed            bool

	// Cache Configuration
	CacheDriver    string // redis or badger
	CacheScanCount int64
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisPoolSize  int
	BadgerPath     string

	// Server Configuration
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// Logging
	LogDir   string
	LogLevel string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "ecommerce")
	v.SetDefault("database.password", "ecommerce")
	v.SetDefault("database.name", "ecommerce")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.connect_attempts", 10)
	v.SetDefault("database.seed", true)

	v.SetDefault("cache.driver", CacheRedis)
	v.SetDefault("cache.scan_count", 10)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 10)
	v.SetDefault("cache.badger.path", "./data/cart")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.request_timeout", "10s")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("log.dir", "./logs")
	v.SetDefault("log.level", "trace")
}

// LoadConfig reads an optional .env file, an optional config file from the
// working directory, and SHOP_* environment variables on top of the defaults.
func LoadConfig() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return Load(v)
}

// Load builds a Config from v, registering defaults and env bindings on it.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		DatabaseHost:            v.GetString("database.host"),
		DatabasePort:            v.GetString("database.port"),
		DatabaseUser:            v.GetString("database.user"),
		DatabasePass:            v.GetString("database.password"),
		DatabaseName:            v.GetString("database.name"),
		DatabaseSSLMode:         v.GetString("database.sslmode"),
		DatabaseMaxOpenConns:    v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:    v.GetInt("database.max_idle_conns"),
		DatabaseConnectAttempts: v.GetInt("database.connect_attempts"),
		DatabaseSeed:            v.GetBool("database.seed"),

		CacheDriver:    strings.ToLower(v.GetString("cache.driver")),
		CacheScanCount: v.GetInt64("cache.scan_count"),
		RedisAddr:      v.GetString("cache.redis.addr"),
		RedisPassword:  v.GetString("cache.redis.password"),
		RedisDB:        v.GetInt("cache.redis.db"),
		RedisPoolSize:  v.GetInt("cache.redis.pool_size"),
		BadgerPath:     v.GetString("cache.badger.path"),

		HTTPPort:        v.GetString("http.port"),
		RequestTimeout:  v.GetDuration("http.request_timeout"),
		ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),

		LogDir:   v.GetString("log.dir"),
		LogLevel: v.GetString("log.level"),
	}
	return cfg, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePass,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseHost == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.DatabaseName == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.DatabaseConnectAttempts < 1 {
		return fmt.Errorf("database.connect_attempts must be at least 1")
	}
	switch c.CacheDriver {
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("cache.redis.addr is required")
		}
	case CacheBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("cache.badger.path is required")
		}
	default:
		return fmt.Errorf("unknown cache.driver %q", c.CacheDriver)
	}
	if c.CacheScanCount < 1 {
		return fmt.Errorf("cache.scan_count must be positive")
	}
	if c.HTTPPort == "" {
		return fmt.Errorf("http.port is required")
	}
	if c.RequestTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	return nil
}
