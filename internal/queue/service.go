package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opdflow/clinic-queue-platform/internal/appointments"
	"github.com/opdflow/clinic-queue-platform/internal/doctorstatus"
	"github.com/opdflow/clinic-queue-platform/internal/events"
	"github.com/opdflow/clinic-queue-platform/internal/observability/metrics"
	"github.com/opdflow/clinic-queue-platform/internal/sessions"
	"github.com/opdflow/clinic-queue-platform/pkg/logging"
)

var queueTracer = otel.Tracer("opdflow.internal.queue")

// sessionStore is the slice of the sessions repository the engine needs.
type sessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*sessions.Session, error)
	GetForDoctorDay(ctx context.Context, doctorID string, dayOfWeek time.Weekday) (*sessions.Session, error)
	AdvanceToken(ctx context.Context, id uuid.UUID, expectedVersion int64, newToken, callsSinceRecall int) (bool, error)
	UpdateRecallSettings(ctx context.Context, id uuid.UUID, interval int, enabled bool) (bool, error)
}

type appointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	ListForSessionDay(ctx context.Context, sessionID uuid.UUID, day time.Time) ([]appointments.Appointment, error)
	MarkInProgress(ctx context.Context, sessionID uuid.UUID, day time.Time, token int) (bool, error)
	RevertToConfirmed(ctx context.Context, sessionID uuid.UUID, day time.Time, token int) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, notes appointments.ConsultationNotes) (bool, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (bool, error)
}

type statusStore interface {
	Get(ctx context.Context, doctorID string) (doctorstatus.Record, error)
	Set(ctx context.Context, doctorID string, status doctorstatus.Status, breakDuration time.Duration, breakReason string) (doctorstatus.Record, error)
}

type eventSink interface {
	Insert(ctx context.Context, doctorID string, eventType string, payload any) (uuid.UUID, error)
}

// CallResult is returned by StartSession and CallNext.
type CallResult struct {
	TokenNumber       int  `json:"token_number"`
	IsRecall          bool `json:"is_recall"`
	MissedTokensCount int  `json:"missed_tokens_count"`
}

// DoctorState is the combined view returned by GetStatus.
type DoctorState struct {
	Status  doctorstatus.Record `json:"status"`
	Session *sessions.Session   `json:"session,omitempty"`
}

// Service is the single authority for what token is being served and what
// comes next. Every mutation commits through the session version check, so a
// doctor's operations serialize even across processes.
type Service struct {
	sessions sessionStore
	appts    appointmentStore
	status   statusStore
	outbox   eventSink
	metrics  *metrics.QueueMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewService constructs the queue engine.
func NewService(sessionRepo sessionStore, apptRepo appointmentStore, status statusStore, outbox eventSink, m *metrics.QueueMetrics, logger *logging.Logger) *Service {
	if sessionRepo == nil || apptRepo == nil || status == nil {
		panic("queue: session, appointment and status stores required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		sessions: sessionRepo,
		appts:    apptRepo,
		status:   status,
		outbox:   outbox,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// StartSession begins the doctor's day: it calls the first confirmed token.
func (s *Service) StartSession(ctx context.Context, doctorID string) (*CallResult, error) {
	ctx, span := queueTracer.Start(ctx, "queue.start_session")
	defer span.End()
	span.SetAttributes(attribute.String("opdflow.doctor_id", doctorID))
	defer s.timeOp("start_session")()

	sess, err := s.sessionForToday(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if sess.Started() {
		return nil, fmt.Errorf("session already at token %d: %w", sess.CurrentToken, ErrInvalidTransition)
	}
	res, err := s.advance(ctx, doctorID, sess)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("session started", "doctor_id", doctorID, "session_id", sess.ID, "token", res.TokenNumber)
	s.observeCall("start")
	return res, nil
}

// CallNext advances the queue to the next token per the recall policy.
func (s *Service) CallNext(ctx context.Context, doctorID string) (*CallResult, error) {
	ctx, span := queueTracer.Start(ctx, "queue.call_next")
	defer span.End()
	span.SetAttributes(attribute.String("opdflow.doctor_id", doctorID))
	defer s.timeOp("call_next")()

	sess, err := s.sessionForToday(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	res, err := s.advance(ctx, doctorID, sess)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if res.IsRecall {
		s.observeCall("recall")
	} else {
		s.observeCall("sequential")
	}
	return res, nil
}

// advance performs one read-decide-write cycle. The decision uses only the
// snapshot {confirmed tokens, current token, recall settings}; the write is
// conditional on the session version observed in that same snapshot.
func (s *Service) advance(ctx context.Context, doctorID string, sess *sessions.Session) (*CallResult, error) {
	day := s.today()

	appts, err := s.appts.ListForSessionDay(ctx, sess.ID, day)
	if err != nil {
		return nil, err
	}
	confirmed := confirmedTokens(appts)

	decision, ok := NextToken(confirmed, sess.CurrentToken, sess.CallsSinceRecall, sess.RecallEnabled, sess.RecallCheckInterval)
	if !ok {
		if sess.CurrentToken == 0 {
			return nil, ErrNoAppointmentsToday
		}
		return nil, ErrNoMoreAppointments
	}

	callsSinceRecall := 0
	if !decision.IsRecall {
		callsSinceRecall = sess.CallsSinceRecall + 1
	}

	advanced, err := s.sessions.AdvanceToken(ctx, sess.ID, sess.Version, decision.TokenNumber, callsSinceRecall)
	if err != nil {
		return nil, err
	}
	if !advanced {
		s.metrics.ObserveConflict()
		s.logger.Warn("concurrent queue advance rejected", "doctor_id", doctorID, "session_id", sess.ID, "version", sess.Version)
		return nil, fmt.Errorf("session %s version %d: %w", sess.ID, sess.Version, ErrStalePrecondition)
	}

	// The previous token was called but never resolved: put it back in the
	// confirmed pool so the missed-token derivation can see it.
	if sess.CurrentToken > 0 && sess.CurrentToken != decision.TokenNumber {
		if _, err := s.appts.RevertToConfirmed(ctx, sess.ID, day, sess.CurrentToken); err != nil {
			s.logger.Error("failed to revert skipped token", "error", err, "session_id", sess.ID, "token", sess.CurrentToken)
		}
	}
	if _, err := s.appts.MarkInProgress(ctx, sess.ID, day, decision.TokenNumber); err != nil {
		s.logger.Error("failed to mark token in-progress", "error", err, "session_id", sess.ID, "token", decision.TokenNumber)
	}

	if rec, err := s.status.Get(ctx, doctorID); err == nil && rec.Status == doctorstatus.Online {
		if _, err := s.status.Set(ctx, doctorID, doctorstatus.Consulting, 0, ""); err != nil {
			s.logger.Error("failed to set consulting status", "error", err, "doctor_id", doctorID)
		}
	}

	eventType := events.TypeTokenCalled
	if decision.IsRecall {
		eventType = events.TypeTokenRecalled
	} else if sess.CurrentToken == 0 {
		eventType = events.TypeSessionStarted
	}
	s.emit(ctx, doctorID, eventType, events.TokenEvent{
		SessionID:   sess.ID.String(),
		TokenNumber: decision.TokenNumber,
		IsRecall:    decision.IsRecall,
		MissedCount: decision.MissedCount,
	})

	s.logger.Info("token called",
		"doctor_id", doctorID,
		"session_id", sess.ID,
		"token", decision.TokenNumber,
		"is_recall", decision.IsRecall,
		"missed_count", decision.MissedCount,
	)

	return &CallResult{
		TokenNumber:       decision.TokenNumber,
		IsRecall:          decision.IsRecall,
		MissedTokensCount: decision.MissedCount,
	}, nil
}

// CompleteCurrent resolves the token being served and attaches the
// consultation payload. It never advances the queue; callers compose
// CallNext explicitly when they want complete-then-advance.
func (s *Service) CompleteCurrent(ctx context.Context, doctorID string, appointmentID uuid.UUID, notes appointments.ConsultationNotes) error {
	ctx, span := queueTracer.Start(ctx, "queue.complete_current")
	defer span.End()
	defer s.timeOp("complete_current")()

	appt, sess, err := s.appointmentForDoctor(ctx, doctorID, appointmentID)
	if err != nil {
		return err
	}
	if appt.TokenNumber != sess.CurrentToken {
		return fmt.Errorf("token %d is not the current token %d: %w", appt.TokenNumber, sess.CurrentToken, ErrInvalidTransition)
	}

	ok, err := s.appts.Complete(ctx, appointmentID, notes)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("appointment %s already resolved: %w", appointmentID, ErrInvalidTransition)
	}

	s.emit(ctx, doctorID, events.TypeConsultationCompleted, events.TokenEvent{
		SessionID:   sess.ID.String(),
		TokenNumber: appt.TokenNumber,
	})
	s.metrics.ObserveCompleted()
	s.logger.Info("consultation completed", "doctor_id", doctorID, "appointment_id", appointmentID, "token", appt.TokenNumber)
	return nil
}

// MarkNoShow terminally resolves a token as a no-show. Allowed for the
// current token, or for an earlier still-confirmed token being skipped
// explicitly. A no-show never re-enters the recall pool.
func (s *Service) MarkNoShow(ctx context.Context, doctorID string, appointmentID uuid.UUID) error {
	ctx, span := queueTracer.Start(ctx, "queue.mark_no_show")
	defer span.End()
	defer s.timeOp("mark_no_show")()

	appt, sess, err := s.appointmentForDoctor(ctx, doctorID, appointmentID)
	if err != nil {
		return err
	}
	isCurrent := appt.TokenNumber == sess.CurrentToken
	isSkippedEarlier := appt.TokenNumber < sess.CurrentToken && appt.Status == appointments.StatusConfirmed
	if !isCurrent && !isSkippedEarlier {
		return fmt.Errorf("token %d cannot be marked no-show with current token %d: %w", appt.TokenNumber, sess.CurrentToken, ErrInvalidTransition)
	}

	ok, err := s.appts.MarkNoShow(ctx, appointmentID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("appointment %s already resolved: %w", appointmentID, ErrInvalidTransition)
	}

	s.emit(ctx, doctorID, events.TypeTokenNoShow, events.TokenEvent{
		SessionID:   sess.ID.String(),
		TokenNumber: appt.TokenNumber,
	})
	s.metrics.ObserveNoShow()
	s.logger.Info("token marked no-show", "doctor_id", doctorID, "appointment_id", appointmentID, "token", appt.TokenNumber)
	return nil
}

// MissedTokensFor derives the doctor's missed tokens from the current
// appointment snapshot.
func (s *Service) MissedTokensFor(ctx context.Context, doctorID string) ([]int, error) {
	sess, err := s.sessionForToday(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	appts, err := s.appts.ListForSessionDay(ctx, sess.ID, s.today())
	if err != nil {
		return nil, err
	}
	return MissedTokens(confirmedTokens(appts), sess.CurrentToken), nil
}

// TodayAppointments returns the doctor's appointments for today in token
// order.
func (s *Service) TodayAppointments(ctx context.Context, doctorID string) ([]appointments.Appointment, error) {
	sess, err := s.sessionForToday(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return s.appts.ListForSessionDay(ctx, sess.ID, s.today())
}

// GetStatus returns the doctor's availability and today's session state. A
// reloaded client restores current_token from here.
func (s *Service) GetStatus(ctx context.Context, doctorID string) (*DoctorState, error) {
	rec, err := s.status.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	state := &DoctorState{Status: rec}
	sess, err := s.sessionForToday(ctx, doctorID)
	if err == nil {
		state.Session = sess
	} else if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	return state, nil
}

// SetStatus changes the doctor's availability. Any transition is allowed,
// except that consulting requires a started session. Status changes never
// touch current_token: going off-break resumes exactly where the queue left
// off.
func (s *Service) SetStatus(ctx context.Context, doctorID string, status doctorstatus.Status, breakDuration time.Duration, breakReason string) (doctorstatus.Record, error) {
	if status == doctorstatus.Consulting {
		sess, err := s.sessionForToday(ctx, doctorID)
		if err != nil {
			return doctorstatus.Record{}, err
		}
		if !sess.Started() {
			return doctorstatus.Record{}, fmt.Errorf("consulting requires a started session: %w", ErrInvalidTransition)
		}
	}

	rec, err := s.status.Set(ctx, doctorID, status, breakDuration, breakReason)
	if err != nil {
		return doctorstatus.Record{}, err
	}

	evt := events.StatusEvent{Status: string(rec.Status), BreakReason: rec.BreakReason}
	if rec.BreakUntil != nil {
		evt.BreakUntil = rec.BreakUntil.Format(time.RFC3339)
	}
	s.emit(ctx, doctorID, events.TypeStatusChanged, evt)
	s.logger.Info("doctor status changed", "doctor_id", doctorID, "status", rec.Status)
	return rec, nil
}

// UpdateRecallSettings stores the recall interval and enable flag for a
// session.
func (s *Service) UpdateRecallSettings(ctx context.Context, sessionID uuid.UUID, interval int, enabled bool) error {
	if interval < 1 {
		return fmt.Errorf("recall interval must be positive: %w", ErrInvalidTransition)
	}
	ok, err := s.sessions.UpdateRecallSettings(ctx, sessionID, interval, enabled)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	s.logger.Info("recall settings updated", "session_id", sessionID, "interval", interval, "enabled", enabled)
	return nil
}

func (s *Service) sessionForToday(ctx context.Context, doctorID string) (*sessions.Session, error) {
	sess, err := s.sessions.GetForDoctorDay(ctx, doctorID, s.now().UTC().Weekday())
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, fmt.Errorf("doctor %s: %w", doctorID, ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) appointmentForDoctor(ctx context.Context, doctorID string, appointmentID uuid.UUID) (*appointments.Appointment, *sessions.Session, error) {
	appt, err := s.appts.GetByID(ctx, appointmentID)
	if errors.Is(err, appointments.ErrNotFound) {
		return nil, nil, fmt.Errorf("appointment %s: %w", appointmentID, ErrAppointmentNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	if appt.DoctorID != doctorID {
		return nil, nil, fmt.Errorf("appointment %s: %w", appointmentID, ErrAppointmentNotFound)
	}
	sess, err := s.sessionForToday(ctx, doctorID)
	if err != nil {
		return nil, nil, err
	}
	return appt, sess, nil
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) emit(ctx context.Context, doctorID, eventType string, payload any) {
	if s.outbox == nil {
		return
	}
	if _, err := s.outbox.Insert(ctx, doctorID, eventType, payload); err != nil {
		s.logger.Error("failed to write queue event", "error", err, "doctor_id", doctorID, "type", eventType)
	}
}

func (s *Service) observeCall(kind string) {
	s.metrics.ObserveCall(kind)
}

func (s *Service) timeOp(operation string) func() {
	start := s.now()
	return func() {
		s.metrics.ObserveDecision(operation, time.Since(start).Seconds())
	}
}

func confirmedTokens(appts []appointments.Appointment) []int {
	var tokens []int
	for _, a := range appts {
		if a.Status == appointments.StatusConfirmed {
			tokens = append(tokens, a.TokenNumber)
		}
	}
	return tokens
}
