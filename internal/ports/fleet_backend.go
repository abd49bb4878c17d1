package ports

import (
	"context"
	"fleet-tracking-service/internal/domain"
)

// Port: the backend that owns couriers, orders and assignments.
type FleetBackend interface {
	// Return couriers currently on shift.
	ListActiveCouriers(ctx context.Context) ([]domain.Courier, error)
	// Return up to pageSize orders in the given status.
	ListOrders(ctx context.Context, status domain.OrderStatus, pageSize int) ([]domain.DeliveryOrder, error)
	// Return every assignment recorded for an order, oldest first.
	ListAssignmentsForOrder(ctx context.Context, orderID string) ([]domain.Assignment, error)
}
