package events

import (
	"time"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEntryCreated       EventType = "entry_created"
	EventEntryStatusChanged EventType = "entry_status_changed"
	EventSessionStarted     EventType = "session_started"
	EventSessionAdvanced    EventType = "session_advanced"
	EventSessionStopped     EventType = "session_stopped"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// EntryCreatedPayload payload.
type EntryCreatedPayload struct {
	EntryID     string               `json:"entry_id"`
	QueueNumber int                  `json:"queue_number"`
	Priority    domain.EntryPriority `json:"priority"`
}

// EntryStatusChangedPayload payload.
type EntryStatusChangedPayload struct {
	EntryID     string             `json:"entry_id"`
	QueueNumber int                `json:"queue_number"`
	OldStatus   domain.EntryStatus `json:"old_status"`
	NewStatus   domain.EntryStatus `json:"new_status"`
}

// SessionStartedPayload payload.
type SessionStartedPayload struct {
	SessionID  string          `json:"session_id"`
	RunnerName string          `json:"runner_name"`
	Doctors    []domain.Doctor `json:"doctors"`
}

// SessionAdvancedPayload payload.
type SessionAdvancedPayload struct {
	SessionID         string `json:"session_id"`
	CurrentQueueIndex int    `json:"current_queue_index"`
}

// SessionStoppedPayload payload.
type SessionStoppedPayload struct {
	SessionID string                `json:"session_id"`
	RecordID  string                `json:"record_id"`
	Status    domain.SessionOutcome `json:"status"`
	ElapsedMs int64                 `json:"elapsed_ms"`
}
