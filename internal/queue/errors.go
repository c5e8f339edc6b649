package queue

import "errors"

// Typed failures surfaced by the queue engine. Every operation either fully
// commits or changes nothing; these errors always mean the latter.
var (
	// ErrNoAppointmentsToday: the doctor has no confirmed tokens for today.
	ErrNoAppointmentsToday = errors.New("queue: no appointments today")

	// ErrNoMoreAppointments: neither a next sequential token nor a missed
	// token remains. The day is complete.
	ErrNoMoreAppointments = errors.New("queue: no more appointments")

	// ErrStalePrecondition: the session mutated between read and write, e.g.
	// two near-simultaneous call-next requests. The caller should refetch.
	ErrStalePrecondition = errors.New("queue: stale precondition")

	// ErrInvalidTransition: the appointment or session does not support the
	// requested operation in its current state.
	ErrInvalidTransition = errors.New("queue: invalid transition")

	// ErrSessionNotFound: no active approved session exists for the lookup.
	ErrSessionNotFound = errors.New("queue: session not found")

	// ErrAppointmentNotFound: the appointment id does not exist or belongs
	// to another doctor.
	ErrAppointmentNotFound = errors.New("queue: appointment not found")
)
