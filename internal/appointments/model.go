// Package appointments persists the day's token-numbered appointments for a
// doctor and exposes the status transitions the consultation queue performs.
package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Appointment is one booked token in a doctor's daily queue. Token numbers
// are assigned at booking time and unique within doctor+date+session.
type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        string     `json:"doctor_id"`
	HospitalID      string     `json:"hospital_id"`
	SessionID       uuid.UUID  `json:"session_id"`
	AppointmentDate time.Time  `json:"appointment_date"`
	TokenNumber     int        `json:"token_number"`
	Status          Status     `json:"status"`
	EstimatedTime   string     `json:"estimated_time,omitempty"`
	PatientName     string     `json:"patient_name,omitempty"`
	PatientPhone    string     `json:"patient_phone,omitempty"`
	DoctorNotes     string     `json:"doctor_notes,omitempty"`
	Diagnosis       string     `json:"diagnosis,omitempty"`
	Prescription    string     `json:"prescription,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// ConsultationNotes is the opaque payload attached when a consultation is
// completed. The queue engine stores it verbatim.
type ConsultationNotes struct {
	Diagnosis    string `json:"diagnosis,omitempty"`
	DoctorNotes  string `json:"notes,omitempty"`
	Prescription string `json:"prescription,omitempty"`
}
