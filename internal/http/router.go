package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type RouterConfig struct {
	Reservations *ReservationHandler
	Occurrences  *OccurrenceHandler
	Rooms        *RoomHandler
	Health       *HealthHandler
	// Middleware wraps every route, outermost first.
	Middleware []func(http.Handler) http.Handler
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	responder := newResponder(cfg.Logger)
	requirePrincipal := RequirePrincipal(cfg.Logger)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responder.writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Message: "resource not found"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responder.writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{Message: http.StatusText(http.StatusMethodNotAllowed)})
	})

	if cfg.Health != nil {
		router.HandleFunc("/healthz", cfg.Health.Check).Methods(http.MethodGet)
	}

	if cfg.Occurrences != nil {
		router.HandleFunc("/get-reservation/{from}/{to}/{room}", cfg.Occurrences.Legacy).Methods(http.MethodGet)
		router.HandleFunc("/rooms/{room}/occurrences", cfg.Occurrences.List).Methods(http.MethodGet)
		router.HandleFunc("/rooms/{room}/occurrences.ics", cfg.Occurrences.Calendar).Methods(http.MethodGet)
	}

	if cfg.Rooms != nil {
		router.HandleFunc("/rooms", cfg.Rooms.List).Methods(http.MethodGet)
		router.Handle("/rooms", requirePrincipal(http.HandlerFunc(cfg.Rooms.Create))).Methods(http.MethodPost)
		router.Handle("/rooms/{room}", requirePrincipal(http.HandlerFunc(cfg.Rooms.Delete))).Methods(http.MethodDelete)
	}

	if cfg.Reservations != nil {
		approve := requirePrincipal(http.HandlerFunc(cfg.Reservations.Approve))
		router.Handle("/reservations", requirePrincipal(http.HandlerFunc(cfg.Reservations.Create))).Methods(http.MethodPost)
		router.Handle("/reservations/{id}", requirePrincipal(http.HandlerFunc(cfg.Reservations.Delete))).Methods(http.MethodDelete)
		router.Handle("/reservations/{id}/approve", approve).Methods(http.MethodPost, http.MethodGet)
		router.Handle("/approve-reservation/{id}", approve).Methods(http.MethodPost, http.MethodGet)
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}
