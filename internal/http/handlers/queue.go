package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opdflow/clinic-queue-platform/internal/appointments"
	"github.com/opdflow/clinic-queue-platform/internal/doctorstatus"
	"github.com/opdflow/clinic-queue-platform/internal/identity"
	"github.com/opdflow/clinic-queue-platform/internal/queue"
	"github.com/opdflow/clinic-queue-platform/pkg/logging"
)

// QueueService is the slice of the queue engine the HTTP layer consumes.
type QueueService interface {
	StartSession(ctx context.Context, doctorID string) (*queue.CallResult, error)
	CallNext(ctx context.Context, doctorID string) (*queue.CallResult, error)
	CompleteCurrent(ctx context.Context, doctorID string, appointmentID uuid.UUID, notes appointments.ConsultationNotes) error
	MarkNoShow(ctx context.Context, doctorID string, appointmentID uuid.UUID) error
	MissedTokensFor(ctx context.Context, doctorID string) ([]int, error)
	TodayAppointments(ctx context.Context, doctorID string) ([]appointments.Appointment, error)
	GetStatus(ctx context.Context, doctorID string) (*queue.DoctorState, error)
	SetStatus(ctx context.Context, doctorID string, status doctorstatus.Status, breakDuration time.Duration, breakReason string) (doctorstatus.Record, error)
	UpdateRecallSettings(ctx context.Context, sessionID uuid.UUID, interval int, enabled bool) error
}

// QueueHandler exposes the consultation queue operations.
type QueueHandler struct {
	svc    QueueService
	logger *logging.Logger
}

// NewQueueHandler creates the queue HTTP handler.
func NewQueueHandler(svc QueueService, logger *logging.Logger) *QueueHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &QueueHandler{svc: svc, logger: logger}
}

func doctorFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	doctorID, ok := identity.DoctorIDFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return doctorID, true
}

// Start begins the doctor's session by calling the first token.
// POST /api/queue/start
func (h *QueueHandler) Start(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	res, err := h.svc.StartSession(r.Context(), doctorID)
	if err != nil {
		queueError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Next advances to the next token per the recall policy.
// POST /api/queue/next
func (h *QueueHandler) Next(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	res, err := h.svc.CallNext(r.Context(), doctorID)
	if err != nil {
		queueError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CompleteRequest is the body for POST /api/queue/complete.
type CompleteRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Diagnosis     string    `json:"diagnosis,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Prescription  string    `json:"prescription,omitempty"`
	// Advance composes call-next after completion. The two effects stay
	// independently retryable: a failed advance leaves the completion
	// committed.
	Advance bool `json:"advance,omitempty"`
}

// CompleteResponse reports the completion and, when requested, the next call.
type CompleteResponse struct {
	OK          bool              `json:"ok"`
	Next        *queue.CallResult `json:"next,omitempty"`
	DayComplete bool              `json:"day_complete,omitempty"`
}

// Complete resolves the current consultation.
// POST /api/queue/complete
func (h *QueueHandler) Complete(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.AppointmentID == uuid.Nil {
		jsonError(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	notes := appointments.ConsultationNotes{
		Diagnosis:    req.Diagnosis,
		DoctorNotes:  req.Notes,
		Prescription: req.Prescription,
	}
	if err := h.svc.CompleteCurrent(r.Context(), doctorID, req.AppointmentID, notes); err != nil {
		queueError(w, err)
		return
	}

	resp := CompleteResponse{OK: true}
	if req.Advance {
		next, err := h.svc.CallNext(r.Context(), doctorID)
		switch {
		case err == nil:
			resp.Next = next
		case errors.Is(err, queue.ErrNoMoreAppointments):
			resp.DayComplete = true
		default:
			// The completion is committed; surface the advance failure
			// without undoing it.
			h.logger.Error("advance after completion failed", "error", err, "doctor_id", doctorID)
			queueError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// NoShowRequest is the body for POST /api/queue/no-show.
type NoShowRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

// NoShow terminally resolves a token as a no-show.
// POST /api/queue/no-show
func (h *QueueHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	var req NoShowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.AppointmentID == uuid.Nil {
		jsonError(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	if err := h.svc.MarkNoShow(r.Context(), doctorID, req.AppointmentID); err != nil {
		queueError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Missed returns the doctor's currently missed tokens.
// GET /api/queue/missed
func (h *QueueHandler) Missed(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	tokens, err := h.svc.MissedTokensFor(r.Context(), doctorID)
	if err != nil {
		queueError(w, err)
		return
	}
	if tokens == nil {
		tokens = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens, "count": len(tokens)})
}

// Today lists the doctor's appointments for today in token order.
// GET /api/appointments/today
func (h *QueueHandler) Today(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	appts, err := h.svc.TodayAppointments(r.Context(), doctorID)
	if err != nil {
		queueError(w, err)
		return
	}
	if appts == nil {
		appts = []appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}
