package domain

import "time"

// Doctor is a session participant snapshotted at configuration time.
type Doctor struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Username *string `json:"username,omitempty"`
	Rank     *string `json:"rank,omitempty"`
}

// QueueSession is the single logical active-queue resource. At most one row
// may have IsRunning set, enforced by a partial unique index in storage.
type QueueSession struct {
	ID                string
	IsRunning         bool
	CurrentQueueIndex int
	RunnerID          *string
	RunnerName        string
	Doctors           []Doctor
	StartTime         *time.Time
	ElapsedMs         int64
	LastUpdated       time.Time
}

// Elapsed returns the accumulated session duration as of now. While running
// it adds the live interval since StartTime to the stored accumulator.
func (s *QueueSession) Elapsed(now time.Time) time.Duration {
	total := time.Duration(s.ElapsedMs) * time.Millisecond
	if s.IsRunning && s.StartTime != nil {
		total += now.Sub(*s.StartTime)
	}
	return total
}
