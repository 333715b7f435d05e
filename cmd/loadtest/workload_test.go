package main

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmadzakiakmal/ecommerce/cartstore"
	"github.com/ahmadzakiakmal/ecommerce/client"
	"github.com/ahmadzakiakmal/ecommerce/logging"
	"github.com/ahmadzakiakmal/ecommerce/repository"
	"github.com/ahmadzakiakmal/ecommerce/server"
	"github.com/ahmadzakiakmal/ecommerce/shop"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"github.com/ahmadzakiakmal/ecommerce/srvreg"
	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRecord(t *testing.T) {
	stats := newStats()
	stats.record(workflowResult{latency: 30 * time.Millisecond})
	stats.record(workflowResult{latency: 10 * time.Millisecond})
	stats.record(workflowResult{err: shoperr.New(shoperr.InsufficientStock, "Insufficient stock", "")})
	stats.record(workflowResult{err: errors.New("boom")})
	stats.Elapsed = 2 * time.Second

	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.Succeeded)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, 10*time.Millisecond, stats.MinLatency)
	assert.Equal(t, 30*time.Millisecond, stats.MaxLatency)
	assert.Equal(t, 20*time.Millisecond, stats.AvgLatency())
	assert.Equal(t, 2.0, stats.TPS())
	assert.Equal(t, map[shoperr.Code]int64{shoperr.InsufficientStock: 1, shoperr.DatabaseError: 1}, stats.Failures)
}

func TestRunNeverOversells(t *testing.T) {
	repo := repository.NewRepository(zerolog.Nop())
	require.NoError(t, repo.Open(sqlite.Open(":memory:"), repository.PoolOptions{MaxOpenConns: 1}))
	require.NoError(t, repo.Seed(context.Background()))
	t.Cleanup(func() { repo.Close() })

	mr := miniredis.RunT(t)
	carts := cartstore.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { carts.Close() })

	sr := srvreg.NewServiceRegistry(shop.New(repo, carts, logging.Nop(), shop.Options{}), repo, carts, zerolog.Nop())
	sr.RegisterDefaultServices()
	ts := httptest.NewServer(server.NewWebServer("0", sr, 5*time.Second, zerolog.Nop()).Handler())
	t.Cleanup(ts.Close)

	c := client.NewClient(ts.URL, 5*time.Second)
	ctx := context.Background()
	stats, err := Run(ctx, c, Options{Workers: 3, Duration: 500 * time.Millisecond, Stock: 3, Funds: 100})
	require.NoError(t, err)

	assert.LessOrEqual(t, stats.Succeeded, int64(3))
	assert.Equal(t, stats.Total, stats.Succeeded+stats.Failed)
	for code := range stats.Failures {
		assert.Equal(t, shoperr.InsufficientStock, code)
	}

	products, err := c.SearchProducts(ctx, repository.ProductQuery{Name: "loadtest-"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	// a checkout cut off by the end of the run may still have committed
	assert.GreaterOrEqual(t, products[0].Stock, int64(0))
	assert.GreaterOrEqual(t, 3-products[0].Stock, stats.Succeeded)
}
