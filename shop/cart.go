package shop

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/ahmadzakiakmal/ecommerce/cartstore"
	"github.com/ahmadzakiakmal/ecommerce/logging"
	"github.com/ahmadzakiakmal/ecommerce/repository/models"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
)

const defaultScanCount = 10

// Entry is one cart line, priced when the product first entered the cart
type Entry struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	SellerID  int64  `json:"seller_id"`
	UnitPrice int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

func (e Entry) LineTotal() int64 {
	return e.Quantity * e.UnitPrice
}

// snapshot is the hash form of the entry without its quantity
func (e Entry) snapshot() map[string]string {
	return map[string]string{
		cartstore.FieldName:     e.Name,
		cartstore.FieldSellerID: strconv.FormatInt(e.SellerID, 10),
		cartstore.FieldPrice:    strconv.FormatInt(e.UnitPrice, 10),
	}
}

func decodeEntry(productID int64, fields map[string]string) (Entry, error) {
	entry := Entry{ProductID: productID, Name: fields[cartstore.FieldName]}
	var err error
	if entry.SellerID, err = strconv.ParseInt(fields[cartstore.FieldSellerID], 10, 64); err != nil {
		return Entry{}, fmt.Errorf("cart entry %d: bad %s: %w", productID, cartstore.FieldSellerID, err)
	}
	if entry.UnitPrice, err = strconv.ParseInt(fields[cartstore.FieldPrice], 10, 64); err != nil {
		return Entry{}, fmt.Errorf("cart entry %d: bad %s: %w", productID, cartstore.FieldPrice, err)
	}
	if entry.Quantity, err = strconv.ParseInt(fields[cartstore.FieldAmount], 10, 64); err != nil {
		return Entry{}, fmt.Errorf("cart entry %d: bad %s: %w", productID, cartstore.FieldAmount, err)
	}
	return entry, nil
}

// Cart is a buyer's cart as read from the store
type Cart struct {
	Entries map[int64]Entry `json:"entries"`
	// Total is recomputed from the entries
	Total int64 `json:"total"`
}

// Lines returns the entries ordered by product id
func (c Cart) Lines() []Entry {
	lines := make([]Entry, 0, len(c.Entries))
	for _, entry := range c.Entries {
		lines = append(lines, entry)
	}
	slices.SortFunc(lines, func(a, b Entry) int {
		switch {
		case a.ProductID < b.ProductID:
			return -1
		case a.ProductID > b.ProductID:
			return 1
		}
		return 0
	})
	return lines
}

// CartSession keeps per-buyer carts in the cart store. Each mutation is a
// sequence of single-key atomic commands; nothing here takes a lock.
type CartSession struct {
	store     cartstore.Store
	products  ProductReader
	logs      *logging.Loggers
	scanCount int64
}

func NewCartSession(store cartstore.Store, products ProductReader, logs *logging.Loggers, scanCount int64) *CartSession {
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	return &CartSession{store: store, products: products, logs: logs, scanCount: scanCount}
}

// AddToCart adds quantity units of the product, accumulating onto an
// existing line, and returns the updated line
func (s *CartSession) AddToCart(ctx context.Context, buyerID, productID, quantity int64) (Entry, error) {
	logger := roleLogger(s.logs, models.RoleBuyer)
	if quantity <= 0 {
		return Entry{}, reject(logger, shoperr.Newf(shoperr.InvalidQuantity, "Invalid quantity", "%d", quantity),
			"Failed to add product to cart")
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return Entry{}, reject(logger, err, "Failed to add product to cart")
	}
	if product.Removed() {
		return Entry{}, reject(logger, shoperr.Newf(shoperr.NotFound, "Product not found", "product %d has been removed", productID),
			"Failed to add product to cart")
	}

	key := cartstore.EntryKey(buyerID, productID)
	fields, err := s.store.HGetAll(ctx, key)
	if err != nil {
		return Entry{}, reject(logger, err, "Failed to add product to cart")
	}

	// an existing line keeps the price it was created with
	var entry Entry
	if len(fields) > 0 {
		fields[cartstore.FieldAmount] = "0"
		if entry, err = decodeEntry(productID, fields); err != nil {
			return Entry{}, reject(logger, shoperr.New(shoperr.CacheError, "Corrupt cart entry", err.Error()),
				"Failed to add product to cart")
		}
	} else {
		entry = Entry{ProductID: productID, Name: product.Name, SellerID: product.SellerID, UnitPrice: product.UnitPrice}
		if err := s.store.HSet(ctx, key, entry.snapshot()); err != nil {
			return Entry{}, reject(logger, err, "Failed to add product to cart")
		}
	}

	if entry.Quantity, err = s.store.HIncrBy(ctx, key, cartstore.FieldAmount, quantity); err != nil {
		return Entry{}, reject(logger, err, "Failed to add product to cart")
	}
	added := quantity * entry.UnitPrice
	if _, err := s.store.IncrBy(ctx, cartstore.TotalKey(buyerID), added); err != nil {
		return Entry{}, reject(logger, err, "Failed to update cart total")
	}

	logger.Info().Int64("buyer_id", buyerID).
		Msgf("Added %dx `%s` to the cart. Total price updated by %d", quantity, entry.Name, added)
	return entry, nil
}

// RemoveFromCart takes quantity units of the product out of the cart. A
// quantity of 0 removes the whole line.
func (s *CartSession) RemoveFromCart(ctx context.Context, buyerID, productID, quantity int64) error {
	logger := roleLogger(s.logs, models.RoleBuyer)
	if quantity < 0 {
		return reject(logger, shoperr.Newf(shoperr.InvalidQuantity, "Invalid quantity", "%d", quantity),
			"Failed to remove product from cart")
	}

	key := cartstore.EntryKey(buyerID, productID)
	fields, err := s.store.HGetAll(ctx, key)
	if err != nil {
		return reject(logger, err, "Failed to remove product from cart")
	}
	if len(fields) == 0 {
		return reject(logger, shoperr.Newf(shoperr.NotInCart, "Product not in cart", "product %d", productID),
			"Failed to remove product from cart")
	}
	entry, err := decodeEntry(productID, fields)
	if err != nil {
		return reject(logger, shoperr.New(shoperr.CacheError, "Corrupt cart entry", err.Error()),
			"Failed to remove product from cart")
	}

	if quantity == 0 {
		quantity = entry.Quantity
	}
	if quantity > entry.Quantity {
		return reject(logger, shoperr.Newf(shoperr.InsufficientCartQuantity, "Not enough quantity in cart",
			"product %d: requested %d, in cart %d", productID, quantity, entry.Quantity),
			"Failed to remove product from cart")
	}

	if quantity == entry.Quantity {
		_, err = s.store.Del(ctx, key)
	} else {
		_, err = s.store.HIncrBy(ctx, key, cartstore.FieldAmount, -quantity)
	}
	if err != nil {
		return reject(logger, err, "Failed to remove product from cart")
	}

	removed := quantity * entry.UnitPrice
	if _, err := s.store.IncrBy(ctx, cartstore.TotalKey(buyerID), -removed); err != nil {
		return reject(logger, err, "Failed to update cart total")
	}

	logger.Info().Int64("buyer_id", buyerID).
		Msgf("Removed %dx `%s` from the cart. Total price updated by %d", quantity, entry.Name, -removed)
	return nil
}

// GetCart reads every line of the buyer's cart
func (s *CartSession) GetCart(ctx context.Context, buyerID int64) (Cart, error) {
	logger := roleLogger(s.logs, models.RoleBuyer)
	keys, err := cartstore.ScanAll(ctx, s.store, cartstore.BuyerPattern(buyerID), s.scanCount)
	if err != nil {
		return Cart{}, reject(logger, err, "Failed to get cart")
	}

	cart := Cart{Entries: map[int64]Entry{}}
	for _, key := range keys {
		productID, ok := cartstore.ProductOf(buyerID, key)
		if !ok {
			continue
		}
		fields, err := s.store.HGetAll(ctx, key)
		if err != nil {
			return Cart{}, reject(logger, err, "Failed to get cart")
		}
		// removed between scan and read
		if len(fields) == 0 {
			continue
		}
		entry, err := decodeEntry(productID, fields)
		if err != nil {
			return Cart{}, reject(logger, shoperr.New(shoperr.CacheError, "Corrupt cart entry", err.Error()), "Failed to get cart")
		}
		cart.Entries[productID] = entry
		cart.Total += entry.LineTotal()
	}

	logger.Debug().Int64("buyer_id", buyerID).Int("lines", len(cart.Entries)).Int64("total", cart.Total).Msg("Cart read")
	return cart, nil
}

// GetCartTotal returns the running total, 0 when the buyer has no cart
func (s *CartSession) GetCartTotal(ctx context.Context, buyerID int64) (int64, error) {
	logger := roleLogger(s.logs, models.RoleBuyer)
	raw, found, err := s.store.Get(ctx, cartstore.TotalKey(buyerID))
	if err != nil {
		return 0, reject(logger, err, "Failed to get total price of cart")
	}
	if !found {
		return 0, nil
	}
	total, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, reject(logger, shoperr.New(shoperr.CacheError, "Corrupt cart total", err.Error()),
			"Failed to get total price of cart")
	}
	return total, nil
}

// ClearCart deletes every line and the total. Clearing an empty cart is a
// no-op, so the call can be retried freely.
func (s *CartSession) ClearCart(ctx context.Context, buyerID int64) error {
	logger := roleLogger(s.logs, models.RoleBuyer)
	keys, err := cartstore.ScanAll(ctx, s.store, cartstore.BuyerPattern(buyerID), s.scanCount)
	if err != nil {
		return reject(logger, err, "Failed to clear cart")
	}
	if _, err := s.store.Del(ctx, append(keys, cartstore.TotalKey(buyerID))...); err != nil {
		return reject(logger, err, "Failed to clear cart")
	}
	logger.Info().Int64("buyer_id", buyerID).Msgf("Cart cleared (%d keys)", len(keys))
	return nil
}
