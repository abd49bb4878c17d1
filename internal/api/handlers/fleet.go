package handlers

import (
	"context"
	"fleet-tracking-service/internal/adapters/mapprovider"
	"fleet-tracking-service/internal/api/dto"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/services"
	"net/http"
	"time"
)

// FleetTracker is the part of the tracker the HTTP surface drives.
type FleetTracker interface {
	State() services.ViewState
	Fleet() []domain.SnapshotEntry
	Route(key domain.RouteKey) (domain.RouteEntry, bool)
	LiveKeys() domain.KeySet
	Refresh(ctx context.Context) error
	SetFilters(ctx context.Context, filters domain.Filters) error
	SetAutoRefresh(on bool) error
	SetRefreshInterval(d time.Duration) error
	SelectCourier(ctx context.Context, courierID string) error
}

// Scene is the rendered map as map clients receive it.
type Scene interface {
	Overlays() []mapprovider.Overlay
	Subscribe() ([]mapprovider.Overlay, <-chan mapprovider.Op, func())
}

// FleetHandler exposes read-only views of the tracked fleet.
type FleetHandler struct {
	Tracker FleetTracker
	Scene   Scene
}

func (h *FleetHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.Tracker.Fleet()

	res := dto.FleetResponse{
		State:    toState(h.Tracker.State()),
		Couriers: make([]dto.CourierResponse, 0, len(entries)),
	}
	for _, e := range entries {
		res.Couriers = append(res.Couriers, h.toCourier(e))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *FleetHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, toState(h.Tracker.State()))
}

func (h *FleetHandler) Overlays(w http.ResponseWriter, r *http.Request) {
	keys := h.Tracker.LiveKeys().Sorted()

	res := dto.OverlaysResponse{
		Keys:     make([]string, 0, len(keys)),
		Overlays: h.Scene.Overlays(),
	}
	for _, k := range keys {
		res.Keys = append(res.Keys, string(k))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *FleetHandler) toCourier(e domain.SnapshotEntry) dto.CourierResponse {
	c := e.Courier
	out := dto.CourierResponse{
		CourierID:    c.ID,
		Name:         c.Name,
		Phone:        c.Phone,
		Vehicle:      string(c.Vehicle),
		Availability: string(e.Bucket()),
		Zones:        c.Zones,
		Position:     toCoordinates(c.Position),
		Destination:  toCoordinates(e.Destination),
	}

	if e.Order != nil {
		out.Order = &dto.OrderResponse{
			OrderID:      e.Order.ID,
			Address:      e.Order.Address,
			CustomerName: e.Order.CustomerName,
			Amount:       e.Order.Amount,
		}
		if rk, ok := e.RouteKey(); ok {
			if route, ok := h.Tracker.Route(rk); ok {
				out.Route = &dto.RouteResponse{
					DistanceMeters:  route.DistanceMeters,
					DurationSeconds: route.DurationSeconds,
					DistanceText:    route.DistanceText,
					DurationText:    route.DurationText,
					ComputedAt:      route.ComputedAt,
				}
			}
		}
	}

	return out
}

func toState(s services.ViewState) dto.StateResponse {
	out := dto.StateResponse{
		Status:            string(s.Status),
		Refreshing:        s.Refreshing,
		AutoRefresh:       s.AutoRefresh,
		RefreshIntervalMS: s.RefreshInterval.Milliseconds(),
		Vehicle:           string(s.Filters.Vehicle),
		Availability:      string(s.Filters.Availability),
		VisibleCouriers:   s.VisibleCouriers,
		SelectedCourierID: s.Selected,
		LastError:         s.LastError,
	}
	if !s.LastRefreshed.IsZero() {
		t := s.LastRefreshed
		out.LastRefreshed = &t
	}
	return out
}
