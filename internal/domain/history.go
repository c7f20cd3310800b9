package domain

import "time"

// SessionOutcome records how an archived session ended.
type SessionOutcome string

const (
	// SessionOutcomeCompleted means no entries were left waiting at stop time.
	SessionOutcomeCompleted SessionOutcome = "COMPLETED"
	// SessionOutcomeTerminated means the runner stopped with work remaining.
	SessionOutcomeTerminated SessionOutcome = "TERMINATED"
)

// SessionRecord is the immutable archive of one finished session. It is
// written exactly once, in the same transaction that clears the running flag.
type SessionRecord struct {
	ID            string
	SessionID     string
	RunnerID      *string
	RunnerName    string
	Doctors       []Doctor
	StoppedBy     *string
	Status        SessionOutcome
	StartTime     time.Time
	EndTime       time.Time
	ElapsedMs     int64
	EntriesServed int
	CreatedAt     time.Time
}

// StaffRef is the minimal display projection resolved for referential
// fields at read time. A dangling reference resolves to nil, never an error.
type StaffRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}
