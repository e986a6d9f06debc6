package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-checkin-agent/internal/application/credential"
	"github.com/go-checkin-agent/internal/domain"
	"github.com/go-checkin-agent/internal/pkg/classify"
	"github.com/go-chi/chi/v5"
)

// CredentialHandler serves check-in credentials to the UI.
type CredentialHandler struct {
	svc credential.Service
	now func() time.Time
}

func NewCredentialHandler(svc credential.Service, now func() time.Time) *CredentialHandler {
	if now == nil {
		now = time.Now
	}
	return &CredentialHandler{svc: svc, now: now}
}

func (h *CredentialHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	issued, err := h.svc.GetToken(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeTokenError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{
		Token:       issued.Token,
		Event:       issued.Event,
		WindowState: issued.Event.StateAt(h.now()),
		FromCache:   issued.FromCache,
	})
}

func (h *CredentialHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SweepEnvelope{Removed: h.svc.SweepExpired(r.Context())})
}

func writeTokenError(w http.ResponseWriter, err error) {
	var rej *domain.RejectionError
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, MessageEnvelope{Error: err.Error(), ErrorCode: domain.CodeUnauthorized})
	case errors.As(err, &rej):
		status := rej.Status
		if status < 400 {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, MessageEnvelope{Error: rej.Message, ErrorCode: rej.Code})
	case errors.Is(err, domain.ErrMalformedResponse):
		writeError(w, http.StatusBadGateway, err.Error())
	case classify.IsNetworkFailure(err):
		writeJSON(w, http.StatusServiceUnavailable, MessageEnvelope{Error: err.Error(), ErrorCode: domain.CodeNetworkError})
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
