package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opdflow/clinic-queue-platform/internal/queue"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// queueError maps engine failures onto HTTP statuses and stable error codes
// the UI can branch on.
func queueError(w http.ResponseWriter, err error) {
	var code string
	var status int
	switch {
	case errors.Is(err, queue.ErrNoAppointmentsToday):
		code, status = "no_appointments_today", http.StatusNotFound
	case errors.Is(err, queue.ErrNoMoreAppointments):
		code, status = "no_more_appointments", http.StatusNotFound
	case errors.Is(err, queue.ErrStalePrecondition):
		code, status = "stale_precondition", http.StatusConflict
	case errors.Is(err, queue.ErrInvalidTransition):
		code, status = "invalid_transition", http.StatusUnprocessableEntity
	case errors.Is(err, queue.ErrSessionNotFound):
		code, status = "session_not_found", http.StatusNotFound
	case errors.Is(err, queue.ErrAppointmentNotFound):
		code, status = "appointment_not_found", http.StatusNotFound
	default:
		jsonError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}
