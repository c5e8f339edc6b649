// Package doctorstatus tracks each doctor's availability state. The state is
// request-scoped data in Redis, never ambient process state: every queue
// operation reads and writes it explicitly.
package doctorstatus

import "time"

// Status is a doctor's availability state.
type Status string

const (
	Offline    Status = "offline"
	Online     Status = "online"
	Consulting Status = "consulting"
	OnBreak    Status = "on_break"
	Emergency  Status = "emergency"
)

// Valid reports whether s is a known status value. Any valid status may
// transition to any other; doctors jump straight from emergency to offline.
func (s Status) Valid() bool {
	switch s {
	case Offline, Online, Consulting, OnBreak, Emergency:
		return true
	}
	return false
}

// Record is the stored state for one doctor.
type Record struct {
	Status      Status     `json:"status"`
	BreakUntil  *time.Time `json:"break_until,omitempty"`
	BreakReason string     `json:"break_reason,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired reports whether a timed break has run out at the given instant.
// Indefinite breaks (no BreakUntil) never expire on their own.
func (r Record) Expired(now time.Time) bool {
	return r.Status == OnBreak && r.BreakUntil != nil && now.After(*r.BreakUntil)
}
