package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-checkin-agent/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// SessionEnvelope wraps session handover responses. Tokens are never echoed back.
type SessionEnvelope struct {
	ExpiresAt string `json:"expires_at,omitempty"`
	Message   string `json:"message,omitempty"`
}

// TokenEnvelope wraps a check-in credential with the window state at response time.
type TokenEnvelope struct {
	Token       string             `json:"token"`
	Event       domain.Event       `json:"event"`
	WindowState domain.WindowState `json:"window_state"`
	FromCache   bool               `json:"from_cache"`
}

// ScanEnvelope wraps the pending scan.
type ScanEnvelope struct {
	Scan  *domain.PendingScan `json:"scan,omitempty"`
	Error string              `json:"error,omitempty"`
}

// SweepEnvelope reports how many cached credentials a sweep removed.
type SweepEnvelope struct {
	Removed int `json:"removed"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
