package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-queue/internal/api/dto"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/service"
)

// HistoryHandler serves the immutable session archive.
type HistoryHandler struct {
	history *service.HistoryService
}

// NewHistoryHandler constructs handler.
func NewHistoryHandler(history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List GET /queue/history.
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	page, limit := service.NormalizeHistoryPaging(
		parseIntQuery(c.Query("page"), 1),
		parseIntQuery(c.Query("limit"), 20),
	)
	query := service.HistoryQuery{
		RunnerID:  c.Query("runnerId"),
		Status:    c.Query("status"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Page:      page,
		Limit:     limit,
		Sort:      c.Query("sort"),
		Order:     c.Query("order"),
	}

	views, total, err := h.history.Query(c.UserContext(), query)
	if err != nil {
		return err
	}

	items := make([]dto.HistoryRecordResponse, 0, len(views))
	for _, view := range views {
		items = append(items, historyRecordResponse(view))
	}
	return c.JSON(dto.HistoryListResponse{
		Data:       items,
		Pagination: dto.NewPagination(page, limit, total),
	})
}

// Get GET /queue/history/:id.
func (h *HistoryHandler) Get(c *fiber.Ctx) error {
	view, err := h.history.GetRecord(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyRecordResponse(*view)})
}

func historyRecordResponse(view service.HistoryRecordView) dto.HistoryRecordResponse {
	record := view.Record
	doctors := record.Doctors
	if doctors == nil {
		doctors = []domain.Doctor{}
	}
	return dto.HistoryRecordResponse{
		ID:            record.ID,
		SessionID:     record.SessionID,
		RunnerID:      record.RunnerID,
		RunnerName:    record.RunnerName,
		Runner:        view.Runner,
		Doctors:       doctors,
		StoppedBy:     view.Stopper,
		Status:        record.Status,
		StartTime:     record.StartTime,
		EndTime:       record.EndTime,
		ElapsedMs:     record.ElapsedMs,
		EntriesServed: record.EntriesServed,
		CreatedAt:     record.CreatedAt,
	}
}
