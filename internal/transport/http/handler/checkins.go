package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-checkin-agent/internal/application/checkin"
	"github.com/go-checkin-agent/internal/domain"
)

// CheckInHandler forwards check-ins to the authority and renders the result.
type CheckInHandler struct {
	svc checkin.Service
}

func NewCheckInHandler(svc checkin.Service) *CheckInHandler { return &CheckInHandler{svc: svc} }

func (h *CheckInHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.FailedCheckIn(domain.CodeInvalidRequest, "invalid request body"))
		return
	}
	res := h.svc.Submit(r.Context(), req)
	writeJSON(w, resultStatus(res), res)
}

func (h *CheckInHandler) SubmitPending(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, domain.FailedCheckIn(domain.CodeInvalidRequest, "invalid request body"))
			return
		}
	}
	res := h.svc.SubmitPending(r.Context(), req.Latitude, req.Longitude)
	writeJSON(w, resultStatus(res), res)
}

func resultStatus(res *domain.CheckInResult) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.ErrorCode {
	case domain.CodeNetworkError:
		return http.StatusServiceUnavailable
	case domain.CodeInvalidRequest:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeNoPendingScan:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}
