package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/opdflow/clinic-queue-platform/pkg/logging"
)

func TestDayDashboard(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	handler := NewDayDashboardHandler(db, logging.Default()).
		WithClock(func() time.Time { return day.Add(17 * time.Hour) })

	mock.ExpectQuery("(?s)SELECT COUNT\\(\\*\\),.*FROM appointments.*").
		WithArgs("doc-1", day).
		WillReturnRows(sqlmock.NewRows([]string{"total", "completed", "no_shows", "remaining"}).
			AddRow(20, 14, 2, 4))

	mock.ExpectQuery("(?s)SELECT COUNT\\(\\*\\).*FROM queue_events.*").
		WithArgs("doc-1", day, day.Add(24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	rec := httptest.NewRecorder()
	handler.GetDay(rec, doctorRequest(http.MethodGet, "/api/dashboard/day", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp DayDashboardResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Date != "2026-03-02" {
		t.Errorf("date = %q", resp.Date)
	}
	if resp.Total != 20 || resp.Completed != 14 || resp.NoShows != 2 || resp.Remaining != 4 {
		t.Errorf("unexpected counts: %+v", resp)
	}
	if resp.RecallsFired != 3 {
		t.Errorf("recalls = %d, want 3", resp.RecallsFired)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDayDashboardWithoutDB(t *testing.T) {
	handler := NewDayDashboardHandler(nil, nil)

	rec := httptest.NewRecorder()
	handler.GetDay(rec, doctorRequest(http.MethodGet, "/api/dashboard/day", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestDayDashboardQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	handler := NewDayDashboardHandler(db, logging.Default())

	mock.ExpectQuery("(?s)SELECT COUNT\\(\\*\\),.*FROM appointments.*").
		WillReturnError(errors.New("connection reset"))

	rec := httptest.NewRecorder()
	handler.GetDay(rec, doctorRequest(http.MethodGet, "/api/dashboard/day", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
