package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-queue/internal/api/dto"
	"github.com/spec-kit/clinic-queue/internal/auth"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/repository"
	"github.com/spec-kit/clinic-queue/internal/service"
	apperrors "github.com/spec-kit/clinic-queue/pkg/util/errorutil"
)

// EntriesHandler manages queue entry endpoints.
type EntriesHandler struct {
	queue *service.QueueService
}

// NewEntriesHandler constructs handler.
func NewEntriesHandler(queue *service.QueueService) *EntriesHandler {
	return &EntriesHandler{queue: queue}
}

// Create POST /queue/entries.
func (h *EntriesHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.CreateEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	entry, err := h.queue.CreateEntry(c.UserContext(), principal.Staff.ID, service.EntryCreateInput{
		PatientName: req.PatientName,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": entryResponse(entry)})
}

// List GET /queue/entries.
func (h *EntriesHandler) List(c *fiber.Ctx) error {
	filter := repository.EntryFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		status := domain.EntryStatus(statusStr)
		filter.Status = &status
	}
	if handledBy := c.Query("handledBy"); handledBy != "" {
		filter.HandledBy = &handledBy
	}
	filter.TodayOnly = c.QueryBool("today", true)

	page := parseIntQuery(c.Query("page"), 1)
	limit := parseIntQuery(c.Query("limit"), 20)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	entries, total, err := h.queue.ListEntries(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, entryResponse(&entries[i]))
	}
	return c.JSON(dto.EntryListResponse{
		Data:       items,
		Pagination: dto.NewPagination(page, limit, total),
	})
}

// Get GET /queue/entries/:id.
func (h *EntriesHandler) Get(c *fiber.Ctx) error {
	entry, err := h.queue.GetEntry(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entryResponse(entry)})
}

// UpdateStatus PATCH /queue/entries/:id/status.
func (h *EntriesHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.UpdateEntryStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	entry, err := h.queue.UpdateEntryStatus(c.UserContext(), c.Params("id"), req.Status, principal.Staff)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entryResponse(entry)})
}

func parseIntQuery(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func entryResponse(entry *domain.QueueEntry) dto.EntryResponse {
	return dto.EntryResponse{
		ID:            entry.ID,
		QueueNumber:   entry.QueueNumber,
		EntryDay:      entry.EntryDay.Format("2006-01-02"),
		PatientName:   entry.PatientName,
		Status:        entry.Status,
		Priority:      entry.Priority,
		StartedAt:     entry.StartedAt,
		CompletedAt:   entry.CompletedAt,
		HandledBy:     entry.HandledBy,
		HandledByName: entry.HandledByName,
		CreatedAt:     entry.CreatedAt,
		UpdatedAt:     entry.UpdatedAt,
	}
}
