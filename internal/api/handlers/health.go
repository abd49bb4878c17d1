package handlers

import (
	"fleet-tracking-service/internal/services"
	"net/http"
)

// Health is a liveness check that also reports whether the map came up.
func (h *FleetHandler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.Tracker.State()

	status, code := "ok", http.StatusOK
	if st.Status == services.StatusProviderUnavailable {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	res := map[string]string{"status": status, "tracker": string(st.Status)}
	writeJSON(w, r, code, res)
}
