package handlers

import (
	"errors"
	"fleet-tracking-service/internal/api/dto"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/services"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// ControlHandler lets the surrounding UI steer the tracker.
type ControlHandler struct {
	Tracker FleetTracker
}

func (h *ControlHandler) SetFilters(w http.ResponseWriter, r *http.Request) {
	var req dto.FiltersRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	availability, err := domain.ParseAvailabilityBucket(req.Availability)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filters := domain.Filters{Vehicle: domain.VehicleCategory(req.Vehicle), Availability: availability}

	if err := h.Tracker.SetFilters(r.Context(), filters); err != nil {
		writeTrackerError(w, r, "set filters", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toState(h.Tracker.State()))
}

// Refresh runs a cycle now.
func (h *ControlHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Tracker.Refresh(r.Context()); err != nil {
		writeTrackerError(w, r, "refresh", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toState(h.Tracker.State()))
}

// UpdateRefresh changes auto refresh and its interval.
func (h *ControlHandler) UpdateRefresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.IntervalMS != nil {
		if err := h.Tracker.SetRefreshInterval(time.Duration(*req.IntervalMS) * time.Millisecond); err != nil {
			writeTrackerError(w, r, "set refresh interval", err)
			return
		}
	}
	if req.AutoRefresh != nil {
		if err := h.Tracker.SetAutoRefresh(*req.AutoRefresh); err != nil {
			writeTrackerError(w, r, "set auto refresh", err)
			return
		}
	}

	writeJSON(w, r, http.StatusOK, toState(h.Tracker.State()))
}

func (h *ControlHandler) Select(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.Tracker.SelectCourier(r.Context(), id); err != nil {
		writeTrackerError(w, r, "select courier", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toState(h.Tracker.State()))
}

func writeTrackerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownCourier):
		writeError(w, r, http.StatusNotFound, "courier not on the map")
	case errors.Is(err, services.ErrRefreshInFlight):
		writeError(w, r, http.StatusConflict, "refresh already in flight")
	case errors.Is(err, services.ErrFetch):
		log.Printf("%s failed: %v", op, err)
		writeError(w, r, http.StatusBadGateway, "fleet backend unavailable")
	case errors.Is(err, services.ErrNotMounted),
		errors.Is(err, services.ErrDisposed),
		errors.Is(err, services.ErrProviderUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "map unavailable")
	default:
		log.Printf("%s failed: %v", op, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
