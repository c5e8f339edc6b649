package sessions

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

// ErrNotFound is returned when no session row matches the lookup.
var ErrNotFound = errors.New("sessions: not found")

const sessionColumns = `id, doctor_id, hospital_id, day_of_week, start_time, end_time,
	max_tokens, avg_minutes_per_patient, is_active, approval_status,
	current_token, calls_since_recall, recall_enabled, recall_check_interval,
	version, started_at`

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for session state.
type Repository struct {
	db db
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("sessions: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(d db) *Repository {
	return &Repository{db: d}
}

// GetByID loads a session row.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: load %s: %w", id, err)
	}
	return s, nil
}

// GetForDoctorDay resolves the doctor's active, approved slot for the given
// weekday. Doctors run at most one approved slot per weekday, so this is the
// session every queue operation resolves from.
func (r *Repository) GetForDoctorDay(ctx context.Context, doctorID string, dayOfWeek time.Weekday) (*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE doctor_id = $1 AND day_of_week = $2
		  AND is_active AND approval_status = 'approved'
	`
	s, err := scanSession(r.db.QueryRow(ctx, query, doctorID, int(dayOfWeek)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: load for doctor %s day %d: %w", doctorID, dayOfWeek, err)
	}
	return s, nil
}

// AdvanceToken moves current_token under an optimistic version check. Two
// racing callers that both observed the same version cannot both match: the
// loser sees zero rows affected and must surface a stale-precondition error.
func (r *Repository) AdvanceToken(ctx context.Context, id uuid.UUID, expectedVersion int64, newToken, callsSinceRecall int) (bool, error) {
	query := `
		UPDATE sessions
		SET current_token = $3, calls_since_recall = $4, version = version + 1,
		    started_at = COALESCE(started_at, now())
		WHERE id = $1 AND version = $2
	`
	ct, err := r.db.Exec(ctx, query, id, expectedVersion, newToken, callsSinceRecall)
	if err != nil {
		return false, fmt.Errorf("sessions: advance token: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// UpdateRecallSettings stores the recall policy knobs. Returns false when the
// session id does not exist.
func (r *Repository) UpdateRecallSettings(ctx context.Context, id uuid.UUID, interval int, enabled bool) (bool, error) {
	query := `
		UPDATE sessions
		SET recall_check_interval = $2, recall_enabled = $3, version = version + 1
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, id, interval, enabled)
	if err != nil {
		return false, fmt.Errorf("sessions: update recall settings: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.DoctorID, &s.HospitalID, &s.DayOfWeek, &s.StartTime, &s.EndTime,
		&s.MaxTokens, &s.AvgMinutesPerPatient, &s.IsActive, &s.ApprovalStatus,
		&s.CurrentToken, &s.CallsSinceRecall, &s.RecallEnabled, &s.RecallCheckInterval,
		&s.Version, &s.StartedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
