package dto

import (
	"fleet-tracking-service/internal/adapters/mapprovider"
	"time"
)

type CoordinatesResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type OrderResponse struct {
	OrderID      string  `json:"order_id"`
	Address      string  `json:"address"`
	CustomerName string  `json:"customer_name"`
	Amount       float64 `json:"amount"`
}

type RouteResponse struct {
	DistanceMeters  int       `json:"distance_meters"`
	DurationSeconds int       `json:"duration_seconds"`
	DistanceText    string    `json:"distance_text"`
	DurationText    string    `json:"duration_text"`
	ComputedAt      time.Time `json:"computed_at"`
}

type CourierResponse struct {
	CourierID    string               `json:"courier_id"`
	Name         string               `json:"name"`
	Phone        string               `json:"phone,omitempty"`
	Vehicle      string               `json:"vehicle"`
	Availability string               `json:"availability"`
	Zones        []string             `json:"zones,omitempty"`
	Position     *CoordinatesResponse `json:"position"`
	Order        *OrderResponse       `json:"order,omitempty"`
	Destination  *CoordinatesResponse `json:"destination,omitempty"`
	Route        *RouteResponse       `json:"route,omitempty"`
}

type FleetResponse struct {
	State    StateResponse     `json:"state"`
	Couriers []CourierResponse `json:"couriers"`
}

type StateResponse struct {
	Status            string     `json:"status"`
	Refreshing        bool       `json:"refreshing"`
	AutoRefresh       bool       `json:"auto_refresh"`
	RefreshIntervalMS int64      `json:"refresh_interval_ms"`
	Vehicle           string     `json:"vehicle"`
	Availability      string     `json:"availability"`
	VisibleCouriers   int        `json:"visible_couriers"`
	SelectedCourierID string     `json:"selected_courier_id,omitempty"`
	LastRefreshed     *time.Time `json:"last_refreshed,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
}

type FiltersRequest struct {
	Vehicle      string `json:"vehicle" validate:"omitempty,oneof=moto car bicycle van"`
	Availability string `json:"availability" validate:"omitempty,oneof=all available busy offline"`
}

// RefreshSettingsRequest changes the schedule; absent fields are left as is.
type RefreshSettingsRequest struct {
	AutoRefresh *bool `json:"auto_refresh"`
	IntervalMS  *int  `json:"interval_ms" validate:"omitempty,gte=1000,lte=3600000"`
}

type OverlaysResponse struct {
	Keys     []string              `json:"keys"`
	Overlays []mapprovider.Overlay `json:"overlays"`
}

// ClientMessage is what a map client sends over the stream.
type ClientMessage struct {
	Type      string `json:"type" validate:"required,oneof=select"`
	CourierID string `json:"courier_id" validate:"required_if=Type select"`
}

// StreamMessage is what the server pushes over the stream: the full scene
// on connect, then one op per change.
type StreamMessage struct {
	Type     string                `json:"type"`
	Overlays []mapprovider.Overlay `json:"overlays,omitempty"`
	Op       *mapprovider.Op       `json:"op,omitempty"`
	Error    string                `json:"error,omitempty"`
}
