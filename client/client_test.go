package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmadzakiakmal/ecommerce/cartstore"
	"github.com/ahmadzakiakmal/ecommerce/logging"
	"github.com/ahmadzakiakmal/ecommerce/repository"
	"github.com/ahmadzakiakmal/ecommerce/repository/models"
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

func newTestClient(t *testing.T) *Client {
	t.Helper()
	repo := repository.NewRepository(zerolog.Nop())
	require.NoError(t, repo.Open(sqlite.Open(":memory:"), repository.PoolOptions{MaxOpenConns: 1}))
	require.NoError(t, repo.Seed(context.Background()))
	t.Cleanup(func() { repo.Close() })

	mr := miniredis.RunT(t)
	carts := cartstore.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { carts.Close() })

	sr := srvreg.NewServiceRegistry(shop.New(repo, carts, logging.Nop(), shop.Options{}), repo, carts, zerolog.Nop())
	sr.RegisterDefaultServices()
	ws := server.NewWebServer("0", sr, 5*time.Second, zerolog.Nop())

	ts := httptest.NewServer(ws.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, 5*time.Second)
}

func TestHealthCheck(t *testing.T) {
	c := newTestClient(t)
	info, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "up", info.Database)
	assert.Equal(t, "up", info.Cache)
}

func TestErrorsKeepTheirCode(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Login(ctx, "Gigio", models.RoleBuyer)
	require.NoError(t, err)
	_, err = c.Login(ctx, "Gigio", models.RoleBuyer)
	assert.True(t, errors.Is(err, shoperr.ErrAlreadyConnected), err)

	_, err = c.GetCart(ctx, 999)
	require.NoError(t, err)
	err = c.CancelOrder(ctx, 1, 42)
	assert.Equal(t, shoperr.OrderNotFound, shoperr.CodeOf(err))
}

func TestUnreachableShop(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	_, err := c.HealthCheck(context.Background())
	assert.Equal(t, shoperr.ConnectionFailure, shoperr.CodeOf(err))
}

func TestOrderRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	buyer, err := c.Login(ctx, "Gigio", models.RoleBuyer)
	require.NoError(t, err)
	seller, err := c.Login(ctx, "Ada", models.RoleSeller)
	require.NoError(t, err)

	apples, err := c.AddProduct(ctx, seller, repository.ProductInput{Name: "Apples", UnitPrice: 2, Stock: 10})
	require.NoError(t, err)
	bread, err := c.AddProduct(ctx, seller, repository.ProductInput{Name: "Bread", UnitPrice: 3, Stock: 5})
	require.NoError(t, err)

	price := int64(4)
	edited, err := c.EditProduct(ctx, seller, bread.ID, repository.ProductPatch{UnitPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, int64(4), edited.UnitPrice)

	found, err := c.SearchProducts(ctx, repository.ProductQuery{Name: "app"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, apples.ID, found[0].ID)

	balance, err := c.AdjustBalance(ctx, buyer, models.RoleBuyer, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	_, err = c.AddToCart(ctx, buyer, apples.ID, 3)
	require.NoError(t, err)
	_, err = c.AddToCart(ctx, buyer, bread.ID, 2)
	require.NoError(t, err)
	cart, err := c.RemoveFromCart(ctx, buyer, apples.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2*2+2*4), cart.Total)
	assert.Len(t, cart.Lines, 2)

	orderID, err := c.Checkout(ctx, buyer, "Via Roma 1")
	require.NoError(t, err)

	balance, err = c.GetBalance(ctx, buyer, models.RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, int64(38), balance)
	balance, err = c.GetBalance(ctx, seller, models.RoleSeller)
	require.NoError(t, err)
	assert.Equal(t, int64(12), balance)

	order, err := c.GetOrder(ctx, buyer, models.RoleBuyer, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, order.Status)
	assert.Len(t, order.Items, 2)

	ongoing, err := c.OngoingOrders(ctx, order.CarrierID)
	require.NoError(t, err)
	require.Len(t, ongoing, 1)

	require.NoError(t, c.SetStatus(ctx, order.CarrierID, models.RoleCarrier, orderID, models.StatusDelivered))
	ongoing, err = c.OngoingOrders(ctx, order.CarrierID)
	require.NoError(t, err)
	assert.Empty(t, ongoing)

	err = c.CancelOrder(ctx, buyer, orderID)
	assert.Equal(t, shoperr.IllegalTransition, shoperr.CodeOf(err))

	history, err := c.OrdersHistory(ctx, seller, models.RoleSeller)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	require.NoError(t, c.RemoveProduct(ctx, seller, bread.ID))
	listed, err := c.SellerProducts(ctx, seller)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	require.NoError(t, c.ClearCart(ctx, buyer))
	require.NoError(t, c.Logout(ctx, buyer, models.RoleBuyer))
	err = c.Logout(ctx, buyer, models.RoleBuyer)
	assert.Equal(t, shoperr.NotLoggedIn, shoperr.CodeOf(err))
}
