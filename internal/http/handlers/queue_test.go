package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opdflow/clinic-queue-platform/internal/appointments"
	"github.com/opdflow/clinic-queue-platform/internal/doctorstatus"
	"github.com/opdflow/clinic-queue-platform/internal/identity"
	"github.com/opdflow/clinic-queue-platform/internal/queue"
)

// stubQueue returns canned results and records the calls it receives.
type stubQueue struct {
	startResult  *queue.CallResult
	startErr     error
	nextResults  []*queue.CallResult
	nextErrs     []error
	nextCalls    int
	completeErr  error
	completedID  uuid.UUID
	noShowErr    error
	noShowID     uuid.UUID
	missed       []int
	missedErr    error
	today        []appointments.Appointment
	state        *queue.DoctorState
	stateErr     error
	setRecord    doctorstatus.Record
	setErr       error
	settingsErr  error
	settingsID   uuid.UUID
	settingsArgs struct {
		interval int
		enabled  bool
	}
}

func (s *stubQueue) StartSession(ctx context.Context, doctorID string) (*queue.CallResult, error) {
	return s.startResult, s.startErr
}

func (s *stubQueue) CallNext(ctx context.Context, doctorID string) (*queue.CallResult, error) {
	i := s.nextCalls
	s.nextCalls++
	var res *queue.CallResult
	var err error
	if i < len(s.nextResults) {
		res = s.nextResults[i]
	}
	if i < len(s.nextErrs) {
		err = s.nextErrs[i]
	}
	return res, err
}

func (s *stubQueue) CompleteCurrent(ctx context.Context, doctorID string, appointmentID uuid.UUID, notes appointments.ConsultationNotes) error {
	s.completedID = appointmentID
	return s.completeErr
}

func (s *stubQueue) MarkNoShow(ctx context.Context, doctorID string, appointmentID uuid.UUID) error {
	s.noShowID = appointmentID
	return s.noShowErr
}

func (s *stubQueue) MissedTokensFor(ctx context.Context, doctorID string) ([]int, error) {
	return s.missed, s.missedErr
}

func (s *stubQueue) TodayAppointments(ctx context.Context, doctorID string) ([]appointments.Appointment, error) {
	return s.today, nil
}

func (s *stubQueue) GetStatus(ctx context.Context, doctorID string) (*queue.DoctorState, error) {
	return s.state, s.stateErr
}

func (s *stubQueue) SetStatus(ctx context.Context, doctorID string, status doctorstatus.Status, breakDuration time.Duration, breakReason string) (doctorstatus.Record, error) {
	return s.setRecord, s.setErr
}

func (s *stubQueue) UpdateRecallSettings(ctx context.Context, sessionID uuid.UUID, interval int, enabled bool) error {
	s.settingsID = sessionID
	s.settingsArgs.interval = interval
	s.settingsArgs.enabled = enabled
	return s.settingsErr
}

func doctorRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(identity.WithDoctorID(req.Context(), "doc-1"))
}

func TestQueueHandlerStart(t *testing.T) {
	stub := &stubQueue{startResult: &queue.CallResult{TokenNumber: 1}}
	h := NewQueueHandler(stub, nil)

	rec := httptest.NewRecorder()
	h.Start(rec, doctorRequest(http.MethodPost, "/api/queue/start", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res queue.CallResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TokenNumber != 1 {
		t.Errorf("token = %d, want 1", res.TokenNumber)
	}
}

func TestQueueHandlerStartWithoutIdentity(t *testing.T) {
	h := NewQueueHandler(&stubQueue{}, nil)

	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/api/queue/start", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestQueueHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty day", queue.ErrNoAppointmentsToday, http.StatusNotFound, "no_appointments_today"},
		{"exhausted", queue.ErrNoMoreAppointments, http.StatusNotFound, "no_more_appointments"},
		{"lost race", queue.ErrStalePrecondition, http.StatusConflict, "stale_precondition"},
		{"already started", queue.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewQueueHandler(&stubQueue{startErr: tt.err}, nil)
			rec := httptest.NewRecorder()
			h.Start(rec, doctorRequest(http.MethodPost, "/api/queue/start", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

func TestQueueHandlerCompleteAndAdvance(t *testing.T) {
	apptID := uuid.New()
	stub := &stubQueue{
		nextResults: []*queue.CallResult{{TokenNumber: 5, IsRecall: true, MissedTokensCount: 1}},
	}
	h := NewQueueHandler(stub, nil)

	body, _ := json.Marshal(CompleteRequest{AppointmentID: apptID, Diagnosis: "seasonal flu", Advance: true})
	rec := httptest.NewRecorder()
	h.Complete(rec, doctorRequest(http.MethodPost, "/api/queue/complete", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if stub.completedID != apptID {
		t.Errorf("completed id = %s, want %s", stub.completedID, apptID)
	}
	var resp CompleteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Next == nil || resp.Next.TokenNumber != 5 || !resp.Next.IsRecall {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestQueueHandlerCompleteAdvanceExhausted(t *testing.T) {
	stub := &stubQueue{nextErrs: []error{queue.ErrNoMoreAppointments}}
	h := NewQueueHandler(stub, nil)

	body, _ := json.Marshal(CompleteRequest{AppointmentID: uuid.New(), Advance: true})
	rec := httptest.NewRecorder()
	h.Complete(rec, doctorRequest(http.MethodPost, "/api/queue/complete", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp CompleteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || !resp.DayComplete || resp.Next != nil {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestQueueHandlerCompleteRequiresAppointmentID(t *testing.T) {
	h := NewQueueHandler(&stubQueue{}, nil)

	body, _ := json.Marshal(CompleteRequest{})
	rec := httptest.NewRecorder()
	h.Complete(rec, doctorRequest(http.MethodPost, "/api/queue/complete", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestQueueHandlerNoShow(t *testing.T) {
	apptID := uuid.New()
	stub := &stubQueue{}
	h := NewQueueHandler(stub, nil)

	body, _ := json.Marshal(NoShowRequest{AppointmentID: apptID})
	rec := httptest.NewRecorder()
	h.NoShow(rec, doctorRequest(http.MethodPost, "/api/queue/no-show", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if stub.noShowID != apptID {
		t.Errorf("no-show id = %s, want %s", stub.noShowID, apptID)
	}
}

func TestQueueHandlerMissedEmptyIsList(t *testing.T) {
	h := NewQueueHandler(&stubQueue{missed: nil}, nil)

	rec := httptest.NewRecorder()
	h.Missed(rec, doctorRequest(http.MethodGet, "/api/queue/missed", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Tokens []int `json:"tokens"`
		Count  int   `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Tokens == nil || len(body.Tokens) != 0 || body.Count != 0 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestQueueHandlerToday(t *testing.T) {
	stub := &stubQueue{today: []appointments.Appointment{
		{ID: uuid.New(), TokenNumber: 1, Status: appointments.StatusConfirmed},
		{ID: uuid.New(), TokenNumber: 2, Status: appointments.StatusConfirmed},
	}}
	h := NewQueueHandler(stub, nil)

	rec := httptest.NewRecorder()
	h.Today(rec, doctorRequest(http.MethodGet, "/api/appointments/today", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var appts []appointments.Appointment
	if err := json.NewDecoder(rec.Body).Decode(&appts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(appts) != 2 || appts[0].TokenNumber != 1 {
		t.Errorf("unexpected appointments: %+v", appts)
	}
}
