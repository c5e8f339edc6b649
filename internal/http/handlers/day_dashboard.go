package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/opdflow/clinic-queue-platform/pkg/logging"
)

// DayDashboardHandler serves the doctor's end-of-day progress metrics. It
// reads through database/sql so the aggregate queries stay independent of the
// pgx pool the queue engine writes through.
type DayDashboardHandler struct {
	db     *sql.DB
	logger *logging.Logger
	now    func() time.Time
}

// DayDashboardResponse summarizes today's consultation progress.
type DayDashboardResponse struct {
	DoctorID     string `json:"doctor_id"`
	Date         string `json:"date"`
	Total        int64  `json:"total"`
	Completed    int64  `json:"completed"`
	NoShows      int64  `json:"no_shows"`
	Remaining    int64  `json:"remaining"`
	RecallsFired int64  `json:"recalls_fired"`
}

// NewDayDashboardHandler creates a new day dashboard handler.
func NewDayDashboardHandler(db *sql.DB, logger *logging.Logger) *DayDashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DayDashboardHandler{db: db, logger: logger, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (h *DayDashboardHandler) WithClock(now func() time.Time) *DayDashboardHandler {
	h.now = now
	return h
}

// GetDay returns today's dashboard for the authenticated doctor.
// GET /api/dashboard/day
func (h *DayDashboardHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	if h.db == nil {
		jsonError(w, "dashboard disabled", http.StatusServiceUnavailable)
		return
	}

	day := h.now().UTC().Truncate(24 * time.Hour)

	total, completed, noShows, remaining, err := h.countAppointments(r.Context(), doctorID, day)
	if err != nil {
		h.logger.Error("failed to count appointments", "doctor_id", doctorID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	recalls, err := h.countRecalls(r.Context(), doctorID, day)
	if err != nil {
		h.logger.Error("failed to count recalls", "doctor_id", doctorID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, DayDashboardResponse{
		DoctorID:     doctorID,
		Date:         day.Format("2006-01-02"),
		Total:        total,
		Completed:    completed,
		NoShows:      noShows,
		Remaining:    remaining,
		RecallsFired: recalls,
	})
}

func (h *DayDashboardHandler) countAppointments(ctx context.Context, doctorID string, day time.Time) (total, completed, noShows, remaining int64, err error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'no-show'),
		       COUNT(*) FILTER (WHERE status IN ('pending', 'confirmed', 'in-progress'))
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2
	`
	err = h.db.QueryRowContext(ctx, query, doctorID, day).Scan(&total, &completed, &noShows, &remaining)
	return total, completed, noShows, remaining, err
}

func (h *DayDashboardHandler) countRecalls(ctx context.Context, doctorID string, day time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM queue_events
		WHERE doctor_id = $1 AND type = 'token_recalled'
		  AND created_at >= $2 AND created_at < $3
	`
	var count int64
	if err := h.db.QueryRowContext(ctx, query, doctorID, day, day.Add(24*time.Hour)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
