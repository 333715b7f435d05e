package shop

import (
	"context"

	"github.com/ahmadzakiakmal/ecommerce/logging"
	"github.com/ahmadzakiakmal/ecommerce/repository"
	"github.com/ahmadzakiakmal/ecommerce/repository/models"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"github.com/google/uuid"
)

// BalanceReader reads account balances
type BalanceReader interface {
	GetBalance(ctx context.Context, id int64, role models.Role) (int64, error)
}

// OrderPlacer records a checkout atomically
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, buyerID int64, address string, lines []repository.OrderLine) (*models.Order, error)
}

// Checkout turns a buyer's cart into an order
type Checkout struct {
	accounts BalanceReader
	cart     *CartSession
	orders   OrderPlacer
	logs     *logging.Loggers
}

func NewCheckout(accounts BalanceReader, cart *CartSession, orders OrderPlacer, logs *logging.Loggers) *Checkout {
	return &Checkout{accounts: accounts, cart: cart, orders: orders, logs: logs}
}

// PlaceOrder checks out the buyer's cart and returns the new order id.
//
// The funds and emptiness checks run against the cart store first. Stock,
// the order, its items and every balance move are then written in one
// relational transaction that re-checks stock and funds against current
// values. The cart is cleared only after that transaction commits; if the
// clear fails the order stands, an ALERT is logged and ClearCart may be
// retried.
func (c *Checkout) PlaceOrder(ctx context.Context, buyerID int64, address string) (int64, error) {
	logger := roleLogger(c.logs, models.RoleBuyer).With().
		Str("checkout_id", uuid.NewString()).
		Int64("buyer_id", buyerID).
		Logger()

	total, err := c.cart.GetCartTotal(ctx, buyerID)
	if err != nil {
		return 0, reject(logger, err, "Failed to place order")
	}
	balance, err := c.accounts.GetBalance(ctx, buyerID, models.RoleBuyer)
	if err != nil {
		return 0, reject(logger, err, "Failed to place order")
	}
	if balance < total {
		return 0, reject(logger, shoperr.Newf(shoperr.InsufficientFunds, "Insufficient funds",
			"balance %d, cart total %d", balance, total), "Failed to place order")
	}

	cart, err := c.cart.GetCart(ctx, buyerID)
	if err != nil {
		return 0, reject(logger, err, "Failed to place order")
	}
	if len(cart.Entries) == 0 {
		return 0, reject(logger, shoperr.New(shoperr.EmptyCart, "Cart is empty", ""), "Failed to place order")
	}

	entries := cart.Lines()
	lines := make([]repository.OrderLine, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, repository.OrderLine{
			ProductID: entry.ProductID,
			Name:      entry.Name,
			SellerID:  entry.SellerID,
			UnitPrice: entry.UnitPrice,
			Quantity:  entry.Quantity,
		})
	}
	logger.Debug().Int("lines", len(lines)).Int64("total", cart.Total).Msg("Placing order")

	order, err := c.orders.PlaceOrder(ctx, buyerID, address, lines)
	if err != nil {
		return 0, reject(logger, err, "Failed to place order")
	}
	logger.Info().Int64("order_id", order.ID).Int64("carrier_id", order.CarrierID).
		Msgf("Order %d placed, total %d", order.ID, order.TotalPrice)

	// The order is committed; a failed clear only leaves a stale cart behind
	if err := c.cart.ClearCart(ctx, buyerID); err != nil {
		logger.Warn().Err(err).Int64("order_id", order.ID).
			Msg("Order committed but the cart could not be cleared; retry ClearCart")
	}
	return order.ID, nil
}
