package models

import (
	"fmt"
	"strings"
	"time"
)

// Role partitions accounts and gates operations
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleSeller  Role = "seller"
	RoleCarrier Role = "carrier"
)

// ParseRole accepts the role names case-insensitively
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleBuyer, RoleSeller, RoleCarrier:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	// StatusShipped is the open state every order starts in.
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus accepts the status names case-insensitively
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// Final reports whether no further transition is allowed
func (s OrderStatus) Final() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// RemovedStock marks a delisted product. The row is kept because order items reference it.
const RemovedStock int64 = -1

// Account represents a buyer, seller or carrier
type Account struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DisplayName   string    `gorm:"column:display_name;type:varchar(255);not null;uniqueIndex:idx_accounts_name_role" json:"display_name"`
	Role          Role      `gorm:"column:role;type:varchar(20);not null;uniqueIndex:idx_accounts_name_role" json:"role"`
	Balance       int64     `gorm:"column:balance;not null;default:0;check:balance >= 0" json:"balance"`
	SessionActive bool      `gorm:"column:session_active;not null;default:false" json:"session_active"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// Product represents a listing owned by a seller
type Product struct {
	ID          int64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string   `gorm:"column:name;type:varchar(255);not null;index" json:"name"`
	SellerID    int64    `gorm:"column:seller_id;not null;index" json:"seller_id"`
	Seller      *Account `gorm:"foreignKey:SellerID" json:"-"`
	UnitPrice   int64    `gorm:"column:price;not null;check:price >= 0" json:"price"`
	Stock       int64    `gorm:"column:stock;not null" json:"stock"`
	Description string   `gorm:"column:description;type:varchar(255);not null;default:''" json:"description"`
}

// Removed reports whether the product has been delisted
func (p *Product) Removed() bool {
	return p.Stock == RemovedStock
}

// Order represents a checkout
type Order struct {
	ID         int64       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	BuyerID    int64       `gorm:"column:buyer_id;not null;index" json:"buyer_id"`
	Buyer      *Account    `gorm:"foreignKey:BuyerID" json:"-"`
	TotalPrice int64       `gorm:"column:total_price;not null" json:"total_price"`
	CarrierID  int64       `gorm:"column:carrier_id;not null;index" json:"carrier_id"`
	Carrier    *Account    `gorm:"foreignKey:CarrierID" json:"-"`
	Status     OrderStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Address    string      `gorm:"column:address;type:varchar(255);not null" json:"address"`
	CreatedAt  time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	// Relationships
	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// OrderItem is the immutable snapshot of one cart line at checkout
type OrderItem struct {
	ID        int64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID   int64    `gorm:"column:order_id;not null;index" json:"order_id"`
	ProductID int64    `gorm:"column:product_id;not null;index" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"-"`
	Quantity  int64    `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice int64    `gorm:"column:price;not null" json:"price"`
	SellerID  int64    `gorm:"column:seller_id;not null;index" json:"seller_id"`
	Seller    *Account `gorm:"foreignKey:SellerID" json:"-"`
}

// LineTotal is quantity times the unit price at purchase
func (i *OrderItem) LineTotal() int64 {
	return i.Quantity * i.UnitPrice
}
