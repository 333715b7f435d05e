// Package shop holds the business services of the store: the account
// directory, the catalog, session carts, checkout and the order lifecycle.
// Services talk to the relational store and the cart store through narrow
// interfaces and log every outcome on the acting role's sink.
package shop

import (
	"context"
	"fmt"

	"github.com/ahmadzakiakmal/ecommerce/cartstore"
	"github.com/ahmadzakiakmal/ecommerce/logging"
	"github.com/ahmadzakiakmal/ecommerce/repository"
	"github.com/ahmadzakiakmal/ecommerce/repository/models"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"github.com/rs/zerolog"
)

// AccountStore persists accounts and their sessions
type AccountStore interface {
	Login(ctx context.Context, name string, role models.Role) (*models.Account, error)
	Logout(ctx context.Context, id int64, role models.Role) error
	GetBalance(ctx context.Context, id int64, role models.Role) (int64, error)
	SetBalance(ctx context.Context, id int64, role models.Role, delta int64) (int64, error)
}

// ProductReader looks products up by id
type ProductReader interface {
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
}

// ProductStore persists the catalog
type ProductStore interface {
	ProductReader
	AddProduct(ctx context.Context, sellerID int64, input repository.ProductInput) (*models.Product, error)
	RemoveProduct(ctx context.Context, sellerID, productID int64) error
	EditProduct(ctx context.Context, sellerID, productID int64, patch repository.ProductPatch) (*models.Product, error)
	SearchProducts(ctx context.Context, q repository.ProductQuery) ([]models.Product, error)
	ListSellerProducts(ctx context.Context, sellerID int64, includeRemoved bool) ([]models.Product, error)
}

// OrderStore persists orders
type OrderStore interface {
	PlaceOrder(ctx context.Context, buyerID int64, address string, lines []repository.OrderLine) (*models.Order, error)
	SetOrderStatus(ctx context.Context, actorID int64, role models.Role, orderID int64, status models.OrderStatus) (*models.Order, error)
	GetOrder(ctx context.Context, actorID int64, role models.Role, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, actorID int64, role models.Role, statuses ...models.OrderStatus) ([]models.Order, error)
}

// Store is everything the shop needs from the relational store
type Store interface {
	AccountStore
	ProductStore
	OrderStore
}

// Options tunes the services
type Options struct {
	// ScanCount is the batch hint for cart key scans
	ScanCount int64
}

// Shop bundles the services sharing one relational store and one cart store
type Shop struct {
	Accounts *AccountDirectory
	Catalog  *Catalog
	Cart     *CartSession
	Checkout *Checkout
	Orders   *OrderLifecycle
}

// New wires every service
func New(store Store, carts cartstore.Store, logs *logging.Loggers, opts Options) *Shop {
	cart := NewCartSession(carts, store, logs, opts.ScanCount)
	return &Shop{
		Accounts: NewAccountDirectory(store, logs),
		Catalog:  NewCatalog(store, logs),
		Cart:     cart,
		Checkout: NewCheckout(store, cart, store, logs),
		Orders:   NewOrderLifecycle(store, logs),
	}
}

func roleLogger(logs *logging.Loggers, role models.Role) zerolog.Logger {
	return logs.For(string(role))
}

// reject logs a failed operation at ERROR and hands the error back
func reject(logger zerolog.Logger, err error, format string, args ...any) error {
	logger.Error().
		Str("code", string(shoperr.CodeOf(err))).
		Msgf("%s: %v", fmt.Sprintf(format, args...), err)
	return err
}
