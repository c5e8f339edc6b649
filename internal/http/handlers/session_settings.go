package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opdflow/clinic-queue-platform/pkg/logging"
)

// SessionSettingsHandler adjusts per-session recall behavior.
type SessionSettingsHandler struct {
	svc    QueueService
	logger *logging.Logger
}

// NewSessionSettingsHandler creates the settings handler.
func NewSessionSettingsHandler(svc QueueService, logger *logging.Logger) *SessionSettingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionSettingsHandler{svc: svc, logger: logger}
}

// RecallSettingsRequest is the body for PUT /api/sessions/{sessionID}/recall.
type RecallSettingsRequest struct {
	CheckInterval int  `json:"check_interval"`
	Enabled       bool `json:"enabled"`
}

// UpdateRecall sets the recall interval and toggle for a session. The new
// settings apply from the next call decision onward.
// PUT /api/sessions/{sessionID}/recall
func (h *SessionSettingsHandler) UpdateRecall(w http.ResponseWriter, r *http.Request) {
	if _, ok := doctorFromRequest(w, r); !ok {
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		jsonError(w, "invalid session id", http.StatusBadRequest)
		return
	}
	var req RecallSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.CheckInterval < 1 {
		jsonError(w, "check_interval must be at least 1", http.StatusBadRequest)
		return
	}

	if err := h.svc.UpdateRecallSettings(r.Context(), sessionID, req.CheckInterval, req.Enabled); err != nil {
		queueError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":     sessionID,
		"check_interval": req.CheckInterval,
		"enabled":        req.Enabled,
	})
}
