package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-checkin-agent/internal/application/session"
	"github.com/go-checkin-agent/internal/domain"
)

// SessionHandler receives the session handed over by the host application.
type SessionHandler struct {
	svc session.Service
}

func NewSessionHandler(svc session.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) Handover(w http.ResponseWriter, r *http.Request) {
	var in domain.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := h.svc.Handover(r.Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrBadRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	env := SessionEnvelope{Message: "session stored"}
	if !sess.ExpiresAt.IsZero() {
		env.ExpiresAt = sess.ExpiresAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "session cleared"})
}
