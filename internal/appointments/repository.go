package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no appointment matches the lookup.
var ErrNotFound = errors.New("appointments: not found")

const appointmentColumns = `id, doctor_id, hospital_id, session_id, appointment_date,
	token_number, status, estimated_time, patient_name, patient_phone,
	doctor_notes, diagnosis, prescription, created_at, updated_at, completed_at`

// db is the subset of pgxpool.Pool the repository needs, so pgxmock can
// stand in for tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for appointments.
type Repository struct {
	db db
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(d db) *Repository {
	return &Repository{db: d}
}

// GetByID loads a single appointment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: load %s: %w", id, err)
	}
	return appt, nil
}

// ListForSessionDay returns the day's appointments for a session ordered by
// token number. The queue engine derives confirmed and missed tokens from
// this snapshot on every decision rather than tracking them incrementally.
func (r *Repository) ListForSessionDay(ctx context.Context, sessionID uuid.UUID, day time.Time) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE session_id = $1 AND appointment_date = $2
		ORDER BY token_number
	`
	rows, err := r.db.Query(ctx, query, sessionID, day)
	if err != nil {
		return nil, fmt.Errorf("appointments: list for session day: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, *appt)
	}
	return out, rows.Err()
}

// MarkInProgress flips a confirmed appointment to in-progress when its token
// is called. Returns false when the appointment is not in a callable state.
func (r *Repository) MarkInProgress(ctx context.Context, sessionID uuid.UUID, day time.Time, token int) (bool, error) {
	query := `
		UPDATE appointments
		SET status = 'in-progress', updated_at = now()
		WHERE session_id = $1 AND appointment_date = $2 AND token_number = $3
		  AND status = 'confirmed'
	`
	ct, err := r.db.Exec(ctx, query, sessionID, day, token)
	if err != nil {
		return false, fmt.Errorf("appointments: mark in-progress: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// RevertToConfirmed returns a called-but-unresolved token to confirmed when
// the doctor advances past it. A reverted token re-enters the missed set.
func (r *Repository) RevertToConfirmed(ctx context.Context, sessionID uuid.UUID, day time.Time, token int) (bool, error) {
	query := `
		UPDATE appointments
		SET status = 'confirmed', updated_at = now()
		WHERE session_id = $1 AND appointment_date = $2 AND token_number = $3
		  AND status = 'in-progress'
	`
	ct, err := r.db.Exec(ctx, query, sessionID, day, token)
	if err != nil {
		return false, fmt.Errorf("appointments: revert to confirmed: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Complete resolves an appointment and attaches the consultation payload.
// Returns false when the appointment was not confirmed or in-progress, which
// includes the already-completed case.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, notes ConsultationNotes) (bool, error) {
	query := `
		UPDATE appointments
		SET status = 'completed', diagnosis = $2, doctor_notes = $3,
		    prescription = $4, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('confirmed', 'in-progress')
	`
	ct, err := r.db.Exec(ctx, query, id, notes.Diagnosis, notes.DoctorNotes, notes.Prescription)
	if err != nil {
		return false, fmt.Errorf("appointments: complete: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MarkNoShow terminally resolves an appointment as a no-show. No-show is
// permanent: the token never re-enters the missed set afterwards.
func (r *Repository) MarkNoShow(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE appointments
		SET status = 'no-show', updated_at = now()
		WHERE id = $1 AND status IN ('confirmed', 'in-progress')
	`
	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("appointments: mark no-show: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.DoctorID, &a.HospitalID, &a.SessionID, &a.AppointmentDate,
		&a.TokenNumber, &a.Status, &a.EstimatedTime, &a.PatientName, &a.PatientPhone,
		&a.DoctorNotes, &a.Diagnosis, &a.Prescription, &a.CreatedAt, &a.UpdatedAt,
		&a.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
