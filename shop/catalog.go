package shop

import (
	"context"

	"github.com/ahmadzakiakmal/ecommerce/logging"
	"github.com/ahmadzakiakmal/ecommerce/repository"
	"github.com/ahmadzakiakmal/ecommerce/repository/models"
)

// Catalog manages seller listings and buyer-facing search
type Catalog struct {
	store ProductStore
	logs  *logging.Loggers
}

func NewCatalog(store ProductStore, logs *logging.Loggers) *Catalog {
	return &Catalog{store: store, logs: logs}
}

func (c *Catalog) AddProduct(ctx context.Context, sellerID int64, input repository.ProductInput) (*models.Product, error) {
	logger := roleLogger(c.logs, models.RoleSeller)
	product, err := c.store.AddProduct(ctx, sellerID, input)
	if err != nil {
		return nil, reject(logger, err, "Failed to add product %q", input.Name)
	}
	logger.Info().Int64("seller_id", sellerID).Int64("product_id", product.ID).
		Msgf("Added product `%s` (price %d, stock %d)", product.Name, product.UnitPrice, product.Stock)
	return product, nil
}

// RemoveProduct delists the product and returns its id
func (c *Catalog) RemoveProduct(ctx context.Context, sellerID, productID int64) (int64, error) {
	logger := roleLogger(c.logs, models.RoleSeller)
	if err := c.store.RemoveProduct(ctx, sellerID, productID); err != nil {
		return 0, reject(logger, err, "Failed to remove product %d", productID)
	}
	logger.Info().Int64("seller_id", sellerID).Int64("product_id", productID).Msg("Product removed")
	return productID, nil
}

// EditProduct changes the given fields; omitted fields keep their value
func (c *Catalog) EditProduct(ctx context.Context, sellerID, productID int64, patch repository.ProductPatch) (*models.Product, error) {
	logger := roleLogger(c.logs, models.RoleSeller)
	product, err := c.store.EditProduct(ctx, sellerID, productID, patch)
	if err != nil {
		return nil, reject(logger, err, "Failed to edit product %d", productID)
	}
	logger.Info().Int64("seller_id", sellerID).Int64("product_id", productID).Msg("Product edited")
	return product, nil
}

// Search is the buyer-facing search; removed listings never show up
func (c *Catalog) Search(ctx context.Context, q repository.ProductQuery) ([]models.Product, error) {
	logger := roleLogger(c.logs, models.RoleBuyer)
	q.IncludeRemoved = false
	products, err := c.store.SearchProducts(ctx, q)
	if err != nil {
		return nil, reject(logger, err, "Failed to search products")
	}
	logger.Info().Int("results", len(products)).Msg("Products searched")
	return products, nil
}

func (c *Catalog) ListSellerProducts(ctx context.Context, sellerID int64, includeRemoved bool) ([]models.Product, error) {
	logger := roleLogger(c.logs, models.RoleSeller)
	products, err := c.store.ListSellerProducts(ctx, sellerID, includeRemoved)
	if err != nil {
		return nil, reject(logger, err, "Failed to list products of seller %d", sellerID)
	}
	return products, nil
}
