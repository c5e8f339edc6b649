package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewOutboxStoreWithDB(mock)

	mock.ExpectExec("INSERT INTO queue_events").
		WithArgs(pgxmock.AnyArg(), "doc-1", TypeTokenCalled, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if _, err := store.Insert(context.Background(), "doc-1", TypeTokenCalled, TokenEvent{SessionID: "s-1", TokenNumber: 4}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "doctor_id", "type", "payload", "created_at"}).
		AddRow(id, "doc-1", TypeTokenCalled, []byte(`{"session_id":"s-1","token_number":4}`), now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id || entries[0].DoctorID != "doc-1" {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE queue_events").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type recordingHandler struct {
	mu      sync.Mutex
	entries []OutboxEntry
	fail    bool
}

func (h *recordingHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return errors.New("handler down")
	}
	h.entries = append(h.entries, entry)
	return nil
}

func TestDelivererDrainsAndMarks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "doctor_id", "type", "payload", "created_at"}).
		AddRow(id, "doc-1", TypeTokenRecalled, []byte(`{"token_number":2,"is_recall":true}`), time.Now().UTC())
	mock.ExpectQuery("SELECT id").WithArgs(int32(5)).WillReturnRows(rows)
	mock.ExpectExec("UPDATE queue_events").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	handler := &recordingHandler{}
	d := NewDeliverer(NewOutboxStoreWithDB(mock), handler, nil).WithBatchSize(5)
	d.drain(context.Background())

	if len(handler.entries) != 1 || handler.entries[0].Type != TypeTokenRecalled {
		t.Fatalf("handler saw %#v", handler.entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelivererLeavesEntryPendingOnHandlerError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "doctor_id", "type", "payload", "created_at"}).
		AddRow(uuid.New(), "doc-1", TypeTokenCalled, []byte(`{}`), time.Now().UTC())
	mock.ExpectQuery("SELECT id").WithArgs(int32(25)).WillReturnRows(rows)
	// No UPDATE expected: failed deliveries stay pending for the next drain.

	handler := &recordingHandler{fail: true}
	d := NewDeliverer(NewOutboxStoreWithDB(mock), handler, nil)
	d.drain(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
