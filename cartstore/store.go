// Package cartstore is the key-value gateway holding session carts.
//
// A buyer's cart lives under two kinds of keys:
//
//	cart:{buyer}:{product}     hash with fields name, sellerId, price, amount
//	cart:{buyer}:total_price   integer running total
//
// Every operation is atomic per key. Nothing here spans more than one key.
package cartstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ahmadzakiakmal/ecommerce/shoperr"
)

// Hash fields of a cart entry
const (
	FieldName     = "name"
	FieldSellerID = "sellerId"
	FieldPrice    = "price"
	FieldAmount   = "amount"
)

const totalSuffix = "total_price"

// Store is the subset of key-value commands carts are built from
type Store interface {
	// HSet sets the given fields of the hash at key, creating it if needed
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HGetAll returns every field of the hash at key; empty when absent
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HIncrBy adds delta to an integer hash field and returns the result
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	// IncrBy adds delta to the integer at key and returns the result
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	// Get returns the string at key and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)
	// Scan returns a batch of keys matching the glob pattern and the cursor
	// for the next call. A returned cursor of 0 ends the iteration.
	Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error)
	// Del removes keys and returns how many existed
	Del(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// EntryKey is the hash key of one cart line
func EntryKey(buyerID, productID int64) string {
	return fmt.Sprintf("cart:%d:%d", buyerID, productID)
}

// TotalKey is the key of the buyer's running total
func TotalKey(buyerID int64) string {
	return fmt.Sprintf("cart:%d:%s", buyerID, totalSuffix)
}

// BuyerPattern matches every key of the buyer's cart
func BuyerPattern(buyerID int64) string {
	return fmt.Sprintf("cart:%d:*", buyerID)
}

// ProductOf extracts the product id from an entry key of the buyer. It
// reports false for the total key and for keys of other buyers.
func ProductOf(buyerID int64, key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, fmt.Sprintf("cart:%d:", buyerID))
	if !ok || rest == totalSuffix {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ScanAll walks the cursor until it is exhausted and returns every distinct
// matching key
func ScanAll(ctx context.Context, store Store, match string, count int64) ([]string, error) {
	seen := map[string]struct{}{}
	var keys []string
	var cursor uint64
	for {
		batch, next, err := store.Scan(ctx, cursor, match, count)
		if err != nil {
			return nil, err
		}
		for _, key := range batch {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var classified *shoperr.Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return shoperr.New(shoperr.Timeout, "Cache operation timed out", err.Error())
	}
	return shoperr.New(shoperr.CacheError, message, err.Error())
}
