package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-checkin-agent/internal/domain"
	"github.com/go-chi/chi/v5"
)

const healthKey = "health:ping"

type storeChecker interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// HealthHandler answers liveness ("ping") and readiness ("ready") checks.
// Readiness reads a key from the record store; a missing key still proves the store answered.
type HealthHandler struct {
	store storeChecker
}

func NewHealthHandler(store storeChecker) *HealthHandler { return &HealthHandler{store: store} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		if h.store != nil {
			if _, err := h.store.Get(r.Context(), healthKey); err != nil && !errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusServiceUnavailable, "record store unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
