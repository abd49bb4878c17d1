package api

import (
	"fleet-tracking-service/internal/api/handlers"
	"net/http"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(tracker handlers.FleetTracker, scene handlers.Scene) http.Handler {
	router := mux.NewRouter()

	fleet := &handlers.FleetHandler{Tracker: tracker, Scene: scene}
	control := &handlers.ControlHandler{Tracker: tracker}
	stream := &handlers.StreamHandler{Tracker: tracker, Scene: scene}

	router.HandleFunc("/health", fleet.Health).Methods(http.MethodGet)
	router.HandleFunc("/fleet", fleet.List).Methods(http.MethodGet)
	router.HandleFunc("/state", fleet.State).Methods(http.MethodGet)
	router.HandleFunc("/overlays", fleet.Overlays).Methods(http.MethodGet)

	router.HandleFunc("/filters", control.SetFilters).Methods(http.MethodPut)
	router.HandleFunc("/refresh", control.Refresh).Methods(http.MethodPost)
	router.HandleFunc("/refresh", control.UpdateRefresh).Methods(http.MethodPut)
	router.HandleFunc("/couriers/{id}/select", control.Select).Methods(http.MethodPost)

	router.HandleFunc("/ws", stream.Serve).Methods(http.MethodGet)

	cors := ghandlers.CORS(
		ghandlers.AllowedOrigins([]string{"*"}),
		ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut}),
		ghandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	return loggingMiddleware(cors(router))
}
