package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/events"
	"github.com/spec-kit/clinic-queue/internal/repository"
	apperrors "github.com/spec-kit/clinic-queue/pkg/util/errorutil"
)

// SessionService drives the queue session state machine: Idle → Running →
// Idle. Exclusivity of the running state is enforced by the storage layer,
// not here; this service only translates storage verdicts into the error
// taxonomy.
type SessionService struct {
	sessions   repository.SessionRepository
	entries    repository.EntryRepository
	dispatcher events.Dispatcher
	now        func() time.Time
}

// SessionDependencies bundles collaborators for the session service.
type SessionDependencies struct {
	SessionRepo repository.SessionRepository
	EntryRepo   repository.EntryRepository
	Dispatcher  events.Dispatcher
}

// SessionStartInput describes a start request.
type SessionStartInput struct {
	RunnerID   string
	RunnerName string
	Doctors    []domain.Doctor
}

// NewSessionService constructs the service.
func NewSessionService(deps SessionDependencies) *SessionService {
	return &SessionService{
		sessions:   deps.SessionRepo,
		entries:    deps.EntryRepo,
		dispatcher: deps.Dispatcher,
		now:        time.Now,
	}
}

// Start claims the global running slot for the caller. The insert and the
// "no other running session" check are a single atomic operation in storage,
// so two racing runners can never both succeed.
func (s *SessionService) Start(ctx context.Context, input SessionStartInput) (*domain.QueueSession, error) {
	if input.RunnerID == "" || strings.TrimSpace(input.RunnerName) == "" {
		return nil, apperrors.NewValidationError("runner id and name required", nil)
	}
	doctors, err := normalizeDoctors(input.Doctors)
	if err != nil {
		return nil, err
	}

	runnerID := input.RunnerID
	session := &domain.QueueSession{
		RunnerID:   &runnerID,
		RunnerName: strings.TrimSpace(input.RunnerName),
		Doctors:    doctors,
	}
	if err := s.sessions.Start(ctx, session); err != nil {
		if errors.Is(err, repository.ErrSessionRunning) {
			return nil, apperrors.NewSessionAlreadyRunning()
		}
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventSessionStarted,
		ActorID: input.RunnerID,
		Payload: events.SessionStartedPayload{
			SessionID:  session.ID,
			RunnerName: session.RunnerName,
			Doctors:    session.Doctors,
		},
	})
	return session, nil
}

// Advance moves the position pointer forward by one. It does not touch queue
// entries; correlating the index to the next waiting entry is the caller's
// concern so entries can be skipped or recalled without renumbering.
func (s *SessionService) Advance(ctx context.Context, sessionID, actorID string) (*domain.QueueSession, error) {
	if sessionID == "" {
		return nil, apperrors.NewValidationError("session id required", nil)
	}
	session, err := s.sessions.Advance(ctx, sessionID)
	if err != nil {
		return nil, mapSessionError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventSessionAdvanced,
		ActorID: actorID,
		Payload: events.SessionAdvancedPayload{
			SessionID:         session.ID,
			CurrentQueueIndex: session.CurrentQueueIndex,
		},
	})
	return session, nil
}

// UpdateDoctors replaces the roster mid-session. Allowed only while running.
func (s *SessionService) UpdateDoctors(ctx context.Context, sessionID, actorID string, doctors []domain.Doctor) (*domain.QueueSession, error) {
	if sessionID == "" {
		return nil, apperrors.NewValidationError("session id required", nil)
	}
	normalized, err := normalizeDoctors(doctors)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.UpdateDoctors(ctx, sessionID, normalized)
	if err != nil {
		return nil, mapSessionError(err)
	}
	return session, nil
}

// Stop archives the session and returns it to Idle. Archival and the state
// flip are one transaction: if the history insert fails the session stays
// running and the caller may retry the whole stop. A second stop on an
// already stopped session yields SESSION_NOT_RUNNING and writes nothing.
func (s *SessionService) Stop(ctx context.Context, sessionID, stoppedBy string) (*domain.SessionRecord, error) {
	if sessionID == "" {
		return nil, apperrors.NewValidationError("session id required", nil)
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("session", map[string]any{"session_id": sessionID})
		}
		return nil, apperrors.MapError(err)
	}
	if !session.IsRunning {
		return nil, apperrors.NewSessionNotRunning()
	}

	now := s.now()
	startTime := now
	if session.StartTime != nil {
		startTime = *session.StartTime
	}

	waiting, err := s.entries.CountWaitingToday(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	outcome := domain.SessionOutcomeCompleted
	if waiting > 0 {
		outcome = domain.SessionOutcomeTerminated
	}

	doctors := session.Doctors
	if doctors == nil {
		doctors = []domain.Doctor{}
	}
	stopper := stoppedBy
	record := &domain.SessionRecord{
		SessionID:     session.ID,
		RunnerID:      session.RunnerID,
		RunnerName:    session.RunnerName,
		Doctors:       doctors,
		StoppedBy:     &stopper,
		Status:        outcome,
		StartTime:     startTime,
		EndTime:       now,
		ElapsedMs:     session.Elapsed(now).Milliseconds(),
		EntriesServed: session.CurrentQueueIndex,
	}

	if err := s.sessions.StopAndArchive(ctx, session.ID, record); err != nil {
		if errors.Is(err, repository.ErrSessionNotRunning) {
			// Lost a race with another stopper; nothing was archived twice.
			return nil, apperrors.NewSessionNotRunning()
		}
		return nil, apperrors.NewArchiveFailed(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventSessionStopped,
		ActorID: stoppedBy,
		Payload: events.SessionStoppedPayload{
			SessionID: session.ID,
			RecordID:  record.ID,
			Status:    record.Status,
			ElapsedMs: record.ElapsedMs,
		},
	})
	return record, nil
}

// Current returns the most recent session, or an idle shell when no session
// has ever run.
func (s *SessionService) Current(ctx context.Context) (*domain.QueueSession, error) {
	session, err := s.sessions.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.QueueSession{Doctors: []domain.Doctor{}, LastUpdated: s.now()}, nil
		}
		return nil, apperrors.MapError(err)
	}
	return session, nil
}

func (s *SessionService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now()
	_ = s.dispatcher.Publish(ctx, event)
}

func mapSessionError(err error) error {
	switch {
	case errors.Is(err, repository.ErrSessionNotRunning):
		return apperrors.NewSessionNotRunning()
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("session", nil)
	default:
		return apperrors.MapError(err)
	}
}

func normalizeDoctors(doctors []domain.Doctor) ([]domain.Doctor, error) {
	normalized := make([]domain.Doctor, 0, len(doctors))
	seen := make(map[string]struct{}, len(doctors))
	for _, doctor := range doctors {
		if doctor.ID == "" || strings.TrimSpace(doctor.Name) == "" {
			return nil, apperrors.NewValidationError("doctor id and name required", nil)
		}
		if _, dup := seen[doctor.ID]; dup {
			continue
		}
		seen[doctor.ID] = struct{}{}
		doctor.Name = strings.TrimSpace(doctor.Name)
		normalized = append(normalized, doctor)
	}
	return normalized, nil
}
