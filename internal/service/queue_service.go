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

// maxAllocateAttempts bounds the allocate-retry loop when concurrent
// creations collide on the same queue number.
const maxAllocateAttempts = 3

// QueueService manages queue entries: per-day ticket allocation and
// forward-only status transitions.
type QueueService struct {
	entries    repository.EntryRepository
	dispatcher events.Dispatcher
	now        func() time.Time
}

// QueueDependencies bundles collaborators for the queue service.
type QueueDependencies struct {
	EntryRepo  repository.EntryRepository
	Dispatcher events.Dispatcher
}

// EntryCreateInput describes entry creation payload.
type EntryCreateInput struct {
	PatientName *string
	Priority    domain.EntryPriority
}

// NewQueueService constructs the service.
func NewQueueService(deps QueueDependencies) *QueueService {
	return &QueueService{
		entries:    deps.EntryRepo,
		dispatcher: deps.Dispatcher,
		now:        time.Now,
	}
}

// CreateEntry allocates the next queue number for today and stores the
// entry. Allocation and insert are one statement; when two callers race,
// the per-day uniqueness constraint fails one of them and we retry with a
// fresh read, so numbers are never fabricated or duplicated.
func (s *QueueService) CreateEntry(ctx context.Context, actorID string, input EntryCreateInput) (*domain.QueueEntry, error) {
	priority := input.Priority
	if priority == "" {
		priority = domain.EntryPriorityNormal
	}
	switch priority {
	case domain.EntryPriorityNormal, domain.EntryPriorityUrgent, domain.EntryPriorityEmergency:
	default:
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(priority)})
	}

	var patientName *string
	if input.PatientName != nil {
		trimmed := strings.TrimSpace(*input.PatientName)
		if trimmed != "" {
			patientName = &trimmed
		}
	}

	entry := &domain.QueueEntry{
		PatientName: patientName,
		Status:      domain.EntryStatusWaiting,
		Priority:    priority,
	}

	var lastErr error
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		err := s.entries.CreateAllocating(ctx, entry)
		if err == nil {
			s.publishEvent(ctx, events.Event{
				Type:    events.EventEntryCreated,
				ActorID: actorID,
				Payload: events.EntryCreatedPayload{
					EntryID:     entry.ID,
					QueueNumber: entry.QueueNumber,
					Priority:    entry.Priority,
				},
			})
			return entry, nil
		}
		if !errors.Is(err, repository.ErrQueueNumberConflict) {
			return nil, apperrors.MapError(err)
		}
		lastErr = err
	}
	return nil, apperrors.NewStorageUnavailable(lastErr)
}

// GetEntry loads a single entry by id.
func (s *QueueService) GetEntry(ctx context.Context, id string) (*domain.QueueEntry, error) {
	entry, err := s.entries.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("entry", map[string]any{"entry_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return entry, nil
}

// ListEntries returns entries matching the filter, ordered by queue number
// ascending within each day.
func (s *QueueService) ListEntries(ctx context.Context, filter repository.EntryFilter) ([]domain.QueueEntry, int, error) {
	if filter.Status != nil && !domain.ValidEntryStatus(*filter.Status) {
		return nil, 0, apperrors.NewValidationError("unknown status", map[string]any{"status": string(*filter.Status)})
	}
	entries, total, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return entries, total, nil
}

// UpdateEntryStatus applies a forward-only status transition and stamps the
// handling staff member onto the entry. handled_by_name is a write-time
// cache of the staff display name; it is not refreshed when staff records
// change later.
func (s *QueueService) UpdateEntryStatus(ctx context.Context, entryID string, to domain.EntryStatus, actor *domain.StaffMember) (*domain.QueueEntry, error) {
	if !domain.ValidEntryStatus(to) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": string(to)})
	}
	entry, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(entry.Status, to) {
		return nil, apperrors.NewInvalidStatusTransition(string(entry.Status), string(to))
	}

	oldStatus := entry.Status
	now := s.now()
	switch to {
	case domain.EntryStatusInProgress:
		entry.StartedAt = &now
		if actor != nil {
			entry.HandledBy = &actor.ID
			entry.HandledByName = &actor.Name
		}
	case domain.EntryStatusCompleted:
		entry.CompletedAt = &now
		if entry.HandledBy == nil && actor != nil {
			entry.HandledBy = &actor.ID
			entry.HandledByName = &actor.Name
		}
	case domain.EntryStatusCancelled:
		entry.CompletedAt = &now
	}
	entry.Status = to

	if err := s.entries.UpdateStatus(ctx, entry); err != nil {
		return nil, apperrors.MapError(err)
	}

	actorID := ""
	if actor != nil {
		actorID = actor.ID
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventEntryStatusChanged,
		ActorID: actorID,
		Payload: events.EntryStatusChangedPayload{
			EntryID:     entry.ID,
			QueueNumber: entry.QueueNumber,
			OldStatus:   oldStatus,
			NewStatus:   entry.Status,
		},
	})
	return entry, nil
}

func (s *QueueService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now()
	_ = s.dispatcher.Publish(ctx, event)
}
