package domain

import "time"

// EntryStatus enumerates lifecycle states for queue entries.
type EntryStatus string

const (
	EntryStatusWaiting    EntryStatus = "WAITING"
	EntryStatusInProgress EntryStatus = "IN_PROGRESS"
	EntryStatusCompleted  EntryStatus = "COMPLETED"
	EntryStatusCancelled  EntryStatus = "CANCELLED"
)

// EntryPriority enumerates triage urgency. Priority is stored metadata only;
// it does not reorder the queue.
type EntryPriority string

const (
	EntryPriorityNormal    EntryPriority = "NORMAL"
	EntryPriorityUrgent    EntryPriority = "URGENT"
	EntryPriorityEmergency EntryPriority = "EMERGENCY"
)

// entryTransitions lists the statuses each status may move to. Transitions
// are forward-only; nothing returns to WAITING.
var entryTransitions = map[EntryStatus][]EntryStatus{
	EntryStatusWaiting:    {EntryStatusInProgress, EntryStatusCancelled},
	EntryStatusInProgress: {EntryStatusCompleted, EntryStatusCancelled},
	EntryStatusCompleted:  {},
	EntryStatusCancelled:  {},
}

// ValidEntryStatus reports whether s is a known entry status.
func ValidEntryStatus(s EntryStatus) bool {
	_, ok := entryTransitions[s]
	return ok
}

// CanTransition reports whether an entry may move from one status to another.
func CanTransition(from, to EntryStatus) bool {
	for _, allowed := range entryTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// QueueEntry is one numbered ticket. QueueNumber is unique per entry day and
// restarts at 1 each day.
type QueueEntry struct {
	ID            string
	QueueNumber   int
	EntryDay      time.Time
	PatientName   *string
	Status        EntryStatus
	Priority      EntryPriority
	StartedAt     *time.Time
	CompletedAt   *time.Time
	HandledBy     *string
	HandledByName *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
