package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-checkin-agent/internal/application/scan"
	"github.com/go-checkin-agent/internal/domain"
)

// ScanHandler holds a scanned credential until it is submitted.
type ScanHandler struct {
	svc scan.Service
}

func NewScanHandler(svc scan.Service) *ScanHandler { return &ScanHandler{svc: svc} }

func (h *ScanHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token required")
		return
	}
	rec, err := h.svc.Save(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, domain.ErrDecode) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, ScanEnvelope{Scan: rec})
}

func (h *ScanHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no pending scan")
		return
	}
	writeJSON(w, http.StatusOK, ScanEnvelope{Scan: rec})
}

func (h *ScanHandler) ClearPending(w http.ResponseWriter, r *http.Request) {
	h.svc.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
