package backend

import (
	"encoding/json"
	"fleet-tracking-service/internal/domain"
	"time"
)

// Wire shapes of the fleet REST API.

type courierDTO struct {
	ID             json.Number `json:"id"`
	Name           string      `json:"name"`
	Phone          string      `json:"phone"`
	VehicleType    string      `json:"vehicle_type"`
	IsActive       bool        `json:"is_active"`
	CurrentLat     *float64    `json:"current_lat"`
	CurrentLng     *float64    `json:"current_lng"`
	Zones          []zoneDTO   `json:"zones"`
	AssignedOrders int         `json:"assigned_orders_count"`
}

type zoneDTO struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

type orderDTO struct {
	ID              json.Number `json:"id"`
	Status          string      `json:"status"`
	DeliveryAddress string      `json:"delivery_address"`
	CustomerName    string      `json:"customer_name"`
	TotalAmount     json.Number `json:"total_amount"`
}

type assignmentDTO struct {
	ID         json.Number `json:"id"`
	Order      json.Number `json:"order"`
	Courier    json.Number `json:"courier"`
	Status     string      `json:"status"`
	AssignedAt time.Time   `json:"assigned_at"`
}

func (d courierDTO) toDomain() domain.Courier {
	c := domain.Courier{
		ID:             d.ID.String(),
		Name:           d.Name,
		Phone:          d.Phone,
		Vehicle:        domain.VehicleCategory(d.VehicleType),
		Active:         d.IsActive,
		AssignedOrders: d.AssignedOrders,
	}
	if d.CurrentLat != nil && d.CurrentLng != nil {
		c.Position = &domain.Coordinates{Lat: *d.CurrentLat, Lng: *d.CurrentLng}
	}
	for _, z := range d.Zones {
		c.Zones = append(c.Zones, z.Name)
	}
	return c
}

func (d orderDTO) toDomain() domain.DeliveryOrder {
	amount, _ := d.TotalAmount.Float64()
	return domain.DeliveryOrder{
		ID:           d.ID.String(),
		Status:       domain.OrderStatus(d.Status),
		Address:      d.DeliveryAddress,
		CustomerName: d.CustomerName,
		Amount:       amount,
	}
}

func (d assignmentDTO) toDomain() domain.Assignment {
	return domain.Assignment{
		ID:         d.ID.String(),
		OrderID:    d.Order.String(),
		CourierID:  d.Courier.String(),
		Status:     domain.AssignmentStatus(d.Status),
		AssignedAt: d.AssignedAt,
	}
}
