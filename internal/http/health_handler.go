package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports storage reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	storage   Pinger
	timeout   time.Duration
	responder responder
}

func NewHealthHandler(storage Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{storage: storage, timeout: 2 * time.Second, responder: newResponder(logger)}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.storage != nil {
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		if err := h.storage.Ping(pingCtx); err != nil {
			h.responder.loggerFor(ctx).ErrorContext(ctx, "storage ping failed", "error", err)
			h.responder.writeJSON(ctx, w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Storage: "down"})
			return
		}
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, healthResponse{Status: "ok", Storage: "up"})
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}
