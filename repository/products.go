package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/ahmadzakiakmal/ecommerce/repository/models"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductInput describes a new listing
type ProductInput struct {
	Name        string `json:"name"`
	UnitPrice   int64  `json:"price"`
	Stock       int64  `json:"stock"`
	Description string `json:"description"`
}

// ProductPatch holds the fields to change; nil fields keep their value
type ProductPatch struct {
	Name        *string `json:"name,omitempty"`
	UnitPrice   *int64  `json:"price,omitempty"`
	Stock       *int64  `json:"stock,omitempty"`
	Description *string `json:"description,omitempty"`
}

// SortKey orders search results by one column
type SortKey struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// ProductQuery filters the catalog. Zero-valued filters are ignored.
type ProductQuery struct {
	Name           string    `json:"name,omitempty"`
	SellerID       int64     `json:"seller_id,omitempty"`
	SellerName     string    `json:"seller_name,omitempty"`
	MinPrice       *int64    `json:"min_price,omitempty"`
	MaxPrice       *int64    `json:"max_price,omitempty"`
	OrderBy        []SortKey `json:"order_by,omitempty"`
	IncludeRemoved bool      `json:"include_removed,omitempty"`
}

var sortColumns = map[string]string{
	"id":        "id",
	"name":      "name",
	"price":     "price",
	"stock":     "stock",
	"seller_id": "seller_id",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// AddProduct lists a new product for the seller
func (r *Repository) AddProduct(ctx context.Context, sellerID int64, input ProductInput) (*models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, shoperr.New(shoperr.InvalidArgument, "Product name is required", "")
	}
	if input.UnitPrice < 0 || input.Stock < 0 {
		return nil, shoperr.Newf(shoperr.InvalidArgument, "Price and stock must not be negative",
			"price %d, stock %d", input.UnitPrice, input.Stock)
	}

	product := models.Product{
		Name:        input.Name,
		SellerID:    sellerID,
		UnitPrice:   input.UnitPrice,
		Stock:       input.Stock,
		Description: input.Description,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findAccount(tx, sellerID, models.RoleSeller); err != nil {
			return err
		}
		return tx.Create(&product).Error
	})
	if err != nil {
		return nil, translate(err, "Failed to add product")
	}
	return &product, nil
}

// RemoveProduct delists the seller's product by setting its stock to the
// removed sentinel. The row stays because order items reference it.
func (r *Repository) RemoveProduct(ctx context.Context, sellerID, productID int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedProduct(tx, sellerID, productID); err != nil {
			return err
		}
		result := tx.Model(&models.Product{}).
			Where("id = ? AND seller_id = ? AND stock <> ?", productID, sellerID, models.RemovedStock).
			Update("stock", models.RemovedStock)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shoperr.Newf(shoperr.NotFound, "Product not found", "product %d", productID)
		}
		return nil
	})
	return translate(err, "Failed to remove product")
}

// EditProduct applies patch to the seller's product and returns the result
func (r *Repository) EditProduct(ctx context.Context, sellerID, productID int64, patch ProductPatch) (*models.Product, error) {
	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, shoperr.New(shoperr.InvalidArgument, "Product name is required", "")
		}
		updates["name"] = name
	}
	if patch.UnitPrice != nil {
		if *patch.UnitPrice < 0 {
			return nil, shoperr.Newf(shoperr.InvalidArgument, "Price must not be negative", "price %d", *patch.UnitPrice)
		}
		updates["price"] = *patch.UnitPrice
	}
	if patch.Stock != nil {
		if *patch.Stock < 0 {
			return nil, shoperr.Newf(shoperr.InvalidArgument, "Stock must not be negative", "stock %d", *patch.Stock)
		}
		updates["stock"] = *patch.Stock
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}

	var product *models.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if product, err = ownedProduct(tx, sellerID, productID); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Product{}).Where("id = ?", productID).Updates(updates).Error; err != nil {
			return err
		}
		product, err = findProduct(tx, productID)
		return err
	})
	if err != nil {
		return nil, translate(err, "Failed to edit product")
	}
	return product, nil
}

// GetProduct fetches a product by id, removed listings included
func (r *Repository) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	product, err := findProduct(r.db.WithContext(ctx), productID)
	if err != nil {
		return nil, translate(err, "Failed to get product")
	}
	return product, nil
}

// SearchProducts returns the products matching q, removed listings excluded
// unless asked for
func (r *Repository) SearchProducts(ctx context.Context, q ProductQuery) ([]models.Product, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&models.Product{})

	if !q.IncludeRemoved {
		query = query.Where("stock <> ?", models.RemovedStock)
	}
	if q.Name != "" {
		query = query.Where(`name LIKE ? ESCAPE '\'`, containsPattern(q.Name))
	}
	if q.SellerID != 0 {
		query = query.Where("seller_id = ?", q.SellerID)
	}
	if q.SellerName != "" {
		sellers := db.Model(&models.Account{}).Select("id").
			Where(`role = ? AND display_name LIKE ? ESCAPE '\'`, models.RoleSeller, containsPattern(q.SellerName))
		query = query.Where("seller_id IN (?)", sellers)
	}
	if q.MinPrice != nil {
		query = query.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		query = query.Where("price <= ?", *q.MaxPrice)
	}

	byID := false
	for _, key := range q.OrderBy {
		column, ok := sortColumns[strings.ToLower(key.Field)]
		if !ok {
			return nil, shoperr.Newf(shoperr.InvalidArgument, "Unknown sort field", "%q", key.Field)
		}
		byID = byID || column == "id"
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: key.Descending})
	}
	if !byID {
		query = query.Order("id")
	}

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, translate(err, "Failed to search products")
	}
	return products, nil
}

// ListSellerProducts returns every listing of the seller
func (r *Repository) ListSellerProducts(ctx context.Context, sellerID int64, includeRemoved bool) ([]models.Product, error) {
	return r.SearchProducts(ctx, ProductQuery{SellerID: sellerID, IncludeRemoved: includeRemoved})
}

func findProduct(tx *gorm.DB, productID int64) (*models.Product, error) {
	var product models.Product
	err := tx.First(&product, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shoperr.Newf(shoperr.NotFound, "Product not found", "product %d", productID)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ownedProduct loads a live product and checks it belongs to the seller
func ownedProduct(tx *gorm.DB, sellerID, productID int64) (*models.Product, error) {
	product, err := findProduct(tx, productID)
	if err != nil {
		return nil, err
	}
	if product.Removed() {
		return nil, shoperr.Newf(shoperr.NotFound, "Product not found", "product %d has been removed", productID)
	}
	if product.SellerID != sellerID {
		return nil, shoperr.Newf(shoperr.NotAuthorized, "Product belongs to another seller",
			"product %d, seller %d", productID, sellerID)
	}
	return product, nil
}
