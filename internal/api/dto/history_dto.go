package dto

import (
	"time"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// HistoryRecordResponse represents one archived session. Runner and
// StoppedBy are resolved at read time and stay null for dangling
// references.
type HistoryRecordResponse struct {
	ID            string                `json:"id"`
	SessionID     string                `json:"session_id"`
	RunnerID      *string               `json:"runner_id"`
	RunnerName    string                `json:"runner_name"`
	Runner        *domain.StaffRef      `json:"runner"`
	Doctors       []domain.Doctor       `json:"doctors"`
	StoppedBy     *domain.StaffRef      `json:"stopped_by"`
	Status        domain.SessionOutcome `json:"status"`
	StartTime     time.Time             `json:"start_time"`
	EndTime       time.Time             `json:"end_time"`
	ElapsedMs     int64                 `json:"elapsed_ms"`
	EntriesServed int                   `json:"entries_served"`
	CreatedAt     time.Time             `json:"created_at"`
}

// HistoryListResponse wraps a page of archived sessions.
type HistoryListResponse struct {
	Data       []HistoryRecordResponse `json:"data"`
	Pagination Pagination              `json:"pagination"`
}
