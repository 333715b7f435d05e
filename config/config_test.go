package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost", cfg.DatabaseHost)
	assert.Equal(t, CacheRedis, cfg.CacheDriver)
	assert.Equal(t, int64(10), cfg.CacheScanCount)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.DatabaseSeed)
	assert.Equal(t,
		"host=localhost port=5432 user=ecommerce password=ecommerce dbname=ecommerce sslmode=disable",
		cfg.GetDSN())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SHOP_DATABASE_HOST", "db.internal")
	t.Setenv("SHOP_CACHE_DRIVER", "BADGER")
	t.Setenv("SHOP_CACHE_BADGER_PATH", "/var/lib/cart")
	t.Setenv("SHOP_HTTP_REQUEST_TIMEOUT", "250ms")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "db.internal", cfg.DatabaseHost)
	assert.Equal(t, CacheBadger, cfg.CacheDriver)
	assert.Equal(t, "/var/lib/cart", cfg.BadgerPath)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestTimeout)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown driver": func(c *Config) { c.CacheDriver = "memcached" },
		"no host":        func(c *Config) { c.DatabaseHost = "" },
		"no attempts":    func(c *Config) { c.DatabaseConnectAttempts = 0 },
		"scan count":     func(c *Config) { c.CacheScanCount = 0 },
		"timeout":        func(c *Config) { c.RequestTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(viper.New())
			require.NoError(t, err)
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
