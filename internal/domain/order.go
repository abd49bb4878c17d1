package domain

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderPreparing  OrderStatus = "preparing"
	OrderReady      OrderStatus = "ready"
	OrderDelivering OrderStatus = "delivering"
	OrderDelivered  OrderStatus = "delivered"
	OrderCanceled   OrderStatus = "canceled"
)

// Represents a customer order. Only orders in the delivering state
// are tracked on the map; the display fields are denormalized copies.
type DeliveryOrder struct {
	ID           string
	Status       OrderStatus
	Address      string
	CustomerName string
	Amount       float64
}

type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCanceled  AssignmentStatus = "canceled"
)

func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentCompleted || s == AssignmentCanceled
}

// Links one order to one courier.
type Assignment struct {
	ID         string
	OrderID    string
	CourierID  string
	Status     AssignmentStatus
	AssignedAt time.Time
}

// SelectActiveAssignment picks the assignment that decides which courier
// delivers an order: the first non-terminal one, or the first one when all
// are terminal. Several non-terminal assignments are tolerated, first wins.
func SelectActiveAssignment(assignments []Assignment) (Assignment, bool) {
	if len(assignments) == 0 {
		return Assignment{}, false
	}
	for _, a := range assignments {
		if !a.Status.IsTerminal() {
			return a, true
		}
	}
	return assignments[0], true
}
