// Package sessions persists a doctor's consultation slot state: where the
// queue currently stands, the recall settings, and the optimistic version
// counter every mutation is serialized through.
package sessions

import (
	"time"

	"github.com/google/uuid"
)

// Session is a doctor's recurring consultation slot at a hospital,
// instantiated per day for queue purposes. CurrentToken == 0 means the
// session has not started today.
type Session struct {
	ID                   uuid.UUID  `json:"id"`
	DoctorID             string     `json:"doctor_id"`
	HospitalID           string     `json:"hospital_id"`
	DayOfWeek            int        `json:"day_of_week"`
	StartTime            string     `json:"start_time"`
	EndTime              string     `json:"end_time"`
	MaxTokens            int        `json:"max_tokens"`
	AvgMinutesPerPatient int        `json:"avg_minutes_per_patient"`
	IsActive             bool       `json:"is_active"`
	ApprovalStatus       string     `json:"approval_status"`
	CurrentToken         int        `json:"current_token"`
	CallsSinceRecall     int        `json:"calls_since_recall"`
	RecallEnabled        bool       `json:"recall_enabled"`
	RecallCheckInterval  int        `json:"recall_check_interval"`
	Version              int64      `json:"version"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
}

// Started reports whether the queue has been advanced at least once today.
func (s *Session) Started() bool {
	return s != nil && s.CurrentToken > 0
}
