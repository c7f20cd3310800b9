package dto

import (
	"time"

	"github.com/spec-kit/clinic-queue/internal/domain"
)

// CreateEntryRequest payload.
type CreateEntryRequest struct {
	PatientName *string              `json:"patient_name"`
	Priority    domain.EntryPriority `json:"priority"`
}

// UpdateEntryStatusRequest payload.
type UpdateEntryStatusRequest struct {
	Status domain.EntryStatus `json:"status"`
}

// EntryResponse represents one queue entry.
type EntryResponse struct {
	ID            string               `json:"id"`
	QueueNumber   int                  `json:"queue_number"`
	EntryDay      string               `json:"entry_day"`
	PatientName   *string              `json:"patient_name"`
	Status        domain.EntryStatus   `json:"status"`
	Priority      domain.EntryPriority `json:"priority"`
	StartedAt     *time.Time           `json:"started_at"`
	CompletedAt   *time.Time           `json:"completed_at"`
	HandledBy     *string              `json:"handled_by"`
	HandledByName *string              `json:"handled_by_name"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// EntryListResponse wraps a page of entries.
type EntryListResponse struct {
	Data       []EntryResponse `json:"data"`
	Pagination Pagination      `json:"pagination"`
}
