package repository

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/ahmadzakiakmal/ecommerce/repository/models"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"gorm.io/gorm"
)

// OrderLine is one cart line priced at the moment it entered the cart
type OrderLine struct {
	ProductID int64
	Name      string
	SellerID  int64
	UnitPrice int64
	Quantity  int64
}

// PlaceOrder records the order in a single transaction: it assigns a
// carrier, reserves stock line by line, snapshots every line, credits the
// sellers and debits the buyer. Any failure rolls everything back.
func (r *Repository) PlaceOrder(ctx context.Context, buyerID int64, address string, lines []OrderLine) (*models.Order, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, shoperr.New(shoperr.InvalidArgument, "Shipping address is required", "")
	}
	if len(lines) == 0 {
		return nil, shoperr.New(shoperr.EmptyCart, "Cart is empty", "")
	}

	// Lock rows in a stable order so concurrent checkouts cannot deadlock
	lines = slices.Clone(lines)
	slices.SortFunc(lines, func(a, b OrderLine) int {
		switch {
		case a.ProductID < b.ProductID:
			return -1
		case a.ProductID > b.ProductID:
			return 1
		}
		return 0
	})

	var total int64
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, shoperr.Newf(shoperr.InvalidQuantity, "Invalid quantity",
				"product %d has quantity %d", line.ProductID, line.Quantity)
		}
		total += line.Quantity * line.UnitPrice
	}

	var order models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findAccount(tx, buyerID, models.RoleBuyer); err != nil {
			return err
		}

		var carrierIDs []int64
		if err := tx.Model(&models.Account{}).Where("role = ?", models.RoleCarrier).Order("id").Pluck("id", &carrierIDs).Error; err != nil {
			return err
		}
		if len(carrierIDs) == 0 {
			return shoperr.New(shoperr.NoCarrierAvailable, "No carrier available", "")
		}

		order = models.Order{
			BuyerID:    buyerID,
			TotalPrice: total,
			CarrierID:  carrierIDs[r.pickCarrier(len(carrierIDs))],
			Status:     models.StatusShipped,
			Address:    address,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		credits := map[int64]int64{}
		for _, line := range lines {
			if err := reserveStock(tx, line); err != nil {
				return err
			}
			item := models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				SellerID:  line.SellerID,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			order.Items = append(order.Items, item)
			credits[line.SellerID] += item.LineTotal()
		}

		sellers := make([]int64, 0, len(credits))
		for id := range credits {
			sellers = append(sellers, id)
		}
		slices.Sort(sellers)
		for _, id := range sellers {
			if _, err := adjustBalance(tx, id, models.RoleSeller, credits[id]); err != nil {
				return err
			}
		}

		_, err := adjustBalance(tx, buyerID, models.RoleBuyer, -total)
		return err
	})
	if err != nil {
		return nil, translate(err, "Failed to place order")
	}
	return &order, nil
}

// reserveStock decrements stock only if enough is left
func reserveStock(tx *gorm.DB, line OrderLine) error {
	result := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", line.ProductID, line.Quantity).
		Update("stock", gorm.Expr("stock - ?", line.Quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	product, err := findProduct(tx, line.ProductID)
	if err != nil {
		return err
	}
	if product.Removed() {
		return shoperr.Newf(shoperr.NotFound, "Product no longer available", "product %d has been removed", line.ProductID)
	}
	return shoperr.Newf(shoperr.InsufficientStock, "Insufficient stock",
		"product %d (%s): requested %d, available %d", line.ProductID, product.Name, line.Quantity, product.Stock)
}

// allowedTarget reports whether role may move an open order to status.
// Buyers cancel, carriers deliver, sellers only watch.
func allowedTarget(role models.Role, status models.OrderStatus) error {
	if !status.Final() {
		return shoperr.Newf(shoperr.IllegalTransition, "Illegal status transition", "cannot move an order to %s", status)
	}
	switch {
	case role == models.RoleBuyer && status == models.StatusCancelled,
		role == models.RoleCarrier && status == models.StatusDelivered:
		return nil
	}
	return shoperr.Newf(shoperr.NotAuthorized, "Not allowed to set this status", "%s cannot set %s", role, status)
}

// SetOrderStatus moves an open order to status on behalf of the actor. The
// order is scoped to the actor first, then checked for a final status, then
// the target is checked against the role. The update is guarded on the open
// state, so of two racing transitions only one succeeds.
func (r *Repository) SetOrderStatus(ctx context.Context, actorID int64, role models.Role, orderID int64, status models.OrderStatus) (*models.Order, error) {
	var order *models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = scopedOrder(tx, actorID, role, orderID); err != nil {
			return err
		}
		if order.Status.Final() {
			return shoperr.Newf(shoperr.IllegalTransition, "Illegal status transition",
				"order %d is already %s", orderID, order.Status)
		}
		if err := allowedTarget(role, status); err != nil {
			return err
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.StatusShipped).
			Update("status", status)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shoperr.Newf(shoperr.IllegalTransition, "Illegal status transition",
				"order %d changed concurrently", orderID)
		}
		order.Status = status
		return nil
	})
	if err != nil {
		return nil, translate(err, "Failed to update order status")
	}
	return order, nil
}

// GetOrder fetches an order with its items, as visible to the actor
func (r *Repository) GetOrder(ctx context.Context, actorID int64, role models.Role, orderID int64) (*models.Order, error) {
	db := r.db.WithContext(ctx)
	order, err := scopedOrder(db, actorID, role, orderID)
	if err != nil {
		return nil, translate(err, "Failed to get order")
	}
	if order.Items, err = orderItems(db, order.ID); err != nil {
		return nil, translate(err, "Failed to get order items")
	}
	return order, nil
}

// OrderItems returns the item snapshots of an order as visible to the actor
func (r *Repository) OrderItems(ctx context.Context, actorID int64, role models.Role, orderID int64) ([]models.OrderItem, error) {
	order, err := r.GetOrder(ctx, actorID, role, orderID)
	if err != nil {
		return nil, err
	}
	return order.Items, nil
}

func orderItems(tx *gorm.DB, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := tx.Where("order_id = ?", orderID).Order("id").Find(&items).Error
	return items, err
}

// ListOrders returns the actor's orders, newest first. Buyers see what they
// bought, carriers what they deliver, sellers every order holding one of
// their products. When statuses is non-empty only those are returned.
func (r *Repository) ListOrders(ctx context.Context, actorID int64, role models.Role, statuses ...models.OrderStatus) ([]models.Order, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&models.Order{}).Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id")
	})

	switch role {
	case models.RoleBuyer:
		query = query.Where("buyer_id = ?", actorID)
	case models.RoleCarrier:
		query = query.Where("carrier_id = ?", actorID)
	case models.RoleSeller:
		query = query.Where("id IN (?)", db.Model(&models.OrderItem{}).Select("order_id").Where("seller_id = ?", actorID))
	default:
		return nil, shoperr.Newf(shoperr.InvalidArgument, "Unknown role", "%q", role)
	}
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var orders []models.Order
	if err := query.Order("id DESC").Find(&orders).Error; err != nil {
		return nil, translate(err, "Failed to list orders")
	}
	return orders, nil
}

// scopedOrder loads the order and checks the actor may see it
func scopedOrder(tx *gorm.DB, actorID int64, role models.Role, orderID int64) (*models.Order, error) {
	var order models.Order
	err := tx.First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shoperr.Newf(shoperr.OrderNotFound, "Order not found", "order %d", orderID)
	}
	if err != nil {
		return nil, err
	}

	visible := false
	switch role {
	case models.RoleBuyer:
		visible = order.BuyerID == actorID
	case models.RoleCarrier:
		visible = order.CarrierID == actorID
	case models.RoleSeller:
		var count int64
		if err := tx.Model(&models.OrderItem{}).Where("order_id = ? AND seller_id = ?", orderID, actorID).Count(&count).Error; err != nil {
			return nil, err
		}
		visible = count > 0
	}
	if !visible {
		return nil, shoperr.Newf(shoperr.NotAuthorized, "Order belongs to another account",
			"%s %d cannot access order %d", role, actorID, orderID)
	}
	return &order, nil
}
