package dto

import (
	"time"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// StartSessionRequest payload. Runner fields default to the authenticated
// caller when omitted.
type StartSessionRequest struct {
	RunnerID   string          `json:"runner_id"`
	RunnerName string          `json:"runner_name"`
	Doctors    []domain.Doctor `json:"doctors"`
}

// AdvanceSessionRequest payload.
type AdvanceSessionRequest struct {
	SessionID string `json:"session_id"`
}

// UpdateDoctorsRequest payload.
type UpdateDoctorsRequest struct {
	SessionID string          `json:"session_id"`
	Doctors   []domain.Doctor `json:"doctors"`
}

// StopSessionRequest payload. StoppedBy defaults to the authenticated
// caller when omitted.
type StopSessionRequest struct {
	SessionID string `json:"session_id"`
	StoppedBy string `json:"stopped_by"`
}

// SessionResponse represents the active-session resource.
type SessionResponse struct {
	ID                string          `json:"id"`
	IsRunning         bool            `json:"is_running"`
	CurrentQueueIndex int             `json:"current_queue_index"`
	RunnerID          *string         `json:"runner_id"`
	RunnerName        string          `json:"runner_name"`
	Doctors           []domain.Doctor `json:"doctors"`
	StartTime         *time.Time      `json:"start_time"`
	ElapsedMs         int64           `json:"elapsed_ms"`
	LastUpdated       time.Time       `json:"last_updated"`
}
