package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opdflow/clinic-queue-platform/internal/doctorstatus"
	"github.com/opdflow/clinic-queue-platform/internal/queue"
	"github.com/opdflow/clinic-queue-platform/internal/sessions"
)

func TestDoctorStatusGet(t *testing.T) {
	stub := &stubQueue{state: &queue.DoctorState{
		Status:  doctorstatus.Record{Status: doctorstatus.Consulting},
		Session: &sessions.Session{CurrentToken: 3},
	}}
	h := NewDoctorStatusHandler(stub, nil)

	rec := httptest.NewRecorder()
	h.Get(rec, doctorRequest(http.MethodGet, "/api/doctor/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var state queue.DoctorState
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Status.Status != doctorstatus.Consulting {
		t.Errorf("status = %q", state.Status.Status)
	}
	if state.Session == nil || state.Session.CurrentToken != 3 {
		t.Errorf("unexpected session: %+v", state.Session)
	}
}

func TestDoctorStatusSetBreak(t *testing.T) {
	until := time.Now().Add(15 * time.Minute)
	stub := &stubQueue{setRecord: doctorstatus.Record{
		Status:      doctorstatus.OnBreak,
		BreakUntil:  &until,
		BreakReason: "lunch",
	}}
	h := NewDoctorStatusHandler(stub, nil)

	body, _ := json.Marshal(SetStatusRequest{Status: "on_break", BreakMinutes: 15, BreakReason: "lunch"})
	rec := httptest.NewRecorder()
	h.Set(rec, doctorRequest(http.MethodPut, "/api/doctor/status", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var record doctorstatus.Record
	if err := json.NewDecoder(rec.Body).Decode(&record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Status != doctorstatus.OnBreak || record.BreakUntil == nil || record.BreakReason != "lunch" {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestDoctorStatusSetValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown status", `{"status":"vacation"}`},
		{"negative break", `{"status":"on_break","break_minutes":-5}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDoctorStatusHandler(&stubQueue{}, nil)
			rec := httptest.NewRecorder()
			h.Set(rec, doctorRequest(http.MethodPut, "/api/doctor/status", []byte(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestDoctorStatusSetConsultingRequiresSession(t *testing.T) {
	h := NewDoctorStatusHandler(&stubQueue{setErr: queue.ErrInvalidTransition}, nil)

	body, _ := json.Marshal(SetStatusRequest{Status: "consulting"})
	rec := httptest.NewRecorder()
	h.Set(rec, doctorRequest(http.MethodPut, "/api/doctor/status", body))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}
