package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/opdflow/clinic-queue-platform/internal/doctorstatus"
	"github.com/opdflow/clinic-queue-platform/pkg/logging"
)

// DoctorStatusHandler serves the doctor's availability state.
type DoctorStatusHandler struct {
	svc    QueueService
	logger *logging.Logger
}

// NewDoctorStatusHandler creates the status handler.
func NewDoctorStatusHandler(svc QueueService, logger *logging.Logger) *DoctorStatusHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DoctorStatusHandler{svc: svc, logger: logger}
}

// Get returns the doctor's current status plus today's session snapshot.
// GET /api/doctor/status
func (h *DoctorStatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	state, err := h.svc.GetStatus(r.Context(), doctorID)
	if err != nil {
		queueError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SetStatusRequest is the body for PUT /api/doctor/status.
type SetStatusRequest struct {
	Status       string `json:"status"`
	BreakMinutes int    `json:"break_minutes,omitempty"`
	BreakReason  string `json:"break_reason,omitempty"`
}

// Set updates the doctor's status.
// PUT /api/doctor/status
func (h *DoctorStatusHandler) Set(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	status := doctorstatus.Status(req.Status)
	if !status.Valid() {
		jsonError(w, "unknown status", http.StatusBadRequest)
		return
	}
	if req.BreakMinutes < 0 {
		jsonError(w, "break_minutes must not be negative", http.StatusBadRequest)
		return
	}

	record, err := h.svc.SetStatus(r.Context(), doctorID, status, time.Duration(req.BreakMinutes)*time.Minute, req.BreakReason)
	if err != nil {
		queueError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
