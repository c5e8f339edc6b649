// Package events gives committed queue transitions a reliable path to the
// notification layer: mutations append to an outbox table and a deliverer
// drains it to a push handler.
package events

// Queue event types written by the consultation engine.
const (
	TypeSessionStarted        = "session_started"
	TypeTokenCalled           = "token_called"
	TypeTokenRecalled         = "token_recalled"
	TypeConsultationCompleted = "consultation_completed"
	TypeTokenNoShow           = "token_no_show"
	TypeStatusChanged         = "status_changed"
)

// TokenEvent is the payload for session/token transitions.
type TokenEvent struct {
	SessionID   string `json:"session_id"`
	TokenNumber int    `json:"token_number"`
	IsRecall    bool   `json:"is_recall,omitempty"`
	MissedCount int    `json:"missed_count,omitempty"`
}

// StatusEvent is the payload for doctor status transitions.
type StatusEvent struct {
	Status      string `json:"status"`
	BreakUntil  string `json:"break_until,omitempty"`
	BreakReason string `json:"break_reason,omitempty"`
}
