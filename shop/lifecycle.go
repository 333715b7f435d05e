package shop

import (
	"context"

	"github.com/ahmadzakiakmal/ecommerce/logging"
	"github.com/ahmadzakiakmal/ecommerce/repository/models"
)

// OrderLifecycle moves orders through shipped, delivered and cancelled and
// answers the role-scoped order views
type OrderLifecycle struct {
	store OrderStore
	logs  *logging.Loggers
}

func NewOrderLifecycle(store OrderStore, logs *logging.Loggers) *OrderLifecycle {
	return &OrderLifecycle{store: store, logs: logs}
}

// SetStatus moves the actor's order to status. Delivered and cancelled
// orders never change again; buyers may only cancel and carriers may only
// deliver.
func (l *OrderLifecycle) SetStatus(ctx context.Context, actorID int64, role models.Role, orderID int64, status models.OrderStatus) error {
	logger := roleLogger(l.logs, role)
	order, err := l.store.SetOrderStatus(ctx, actorID, role, orderID, status)
	if err != nil {
		return reject(logger, err, "Failed to set status of order %d", orderID)
	}
	logger.Info().Int64("order_id", order.ID).Int64("actor_id", actorID).Msgf("Order %d is now %s", order.ID, order.Status)
	return nil
}

// CancelOrder cancels the buyer's open order. Stock and balances are left
// as they are.
func (l *OrderLifecycle) CancelOrder(ctx context.Context, buyerID, orderID int64) error {
	return l.SetStatus(ctx, buyerID, models.RoleBuyer, orderID, models.StatusCancelled)
}

func (l *OrderLifecycle) GetOrderStatus(ctx context.Context, actorID int64, role models.Role, orderID int64) (models.OrderStatus, error) {
	order, err := l.GetOrder(ctx, actorID, role, orderID)
	if err != nil {
		return "", err
	}
	return order.Status, nil
}

// GetOrder returns the order with its items as visible to the actor
func (l *OrderLifecycle) GetOrder(ctx context.Context, actorID int64, role models.Role, orderID int64) (*models.Order, error) {
	order, err := l.store.GetOrder(ctx, actorID, role, orderID)
	if err != nil {
		return nil, reject(roleLogger(l.logs, role), err, "Failed to get order %d", orderID)
	}
	return order, nil
}

// GetOrdersHistory lists the actor's orders, newest first
func (l *OrderLifecycle) GetOrdersHistory(ctx context.Context, actorID int64, role models.Role) ([]models.Order, error) {
	orders, err := l.store.ListOrders(ctx, actorID, role)
	if err != nil {
		return nil, reject(roleLogger(l.logs, role), err, "Failed to get orders history")
	}
	return orders, nil
}

// GetOngoingOrders lists the carrier's orders still in transit
func (l *OrderLifecycle) GetOngoingOrders(ctx context.Context, carrierID int64) ([]models.Order, error) {
	orders, err := l.store.ListOrders(ctx, carrierID, models.RoleCarrier, models.StatusShipped)
	if err != nil {
		return nil, reject(roleLogger(l.logs, models.RoleCarrier), err, "Failed to get ongoing orders")
	}
	return orders, nil
}
