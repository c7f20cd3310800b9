package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-queue/internal/api/dto"
	"github.com/spec-kit/clinic-queue/internal/auth"
	"github.com/spec-kit/clinic-queue/internal/domain"
	"github.com/spec-kit/clinic-queue/internal/service"
	apperrors "github.com/spec-kit/clinic-queue/pkg/util/errorutil"
)

// SessionHandler manages the active queue session endpoints.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Start POST /queue/session/start.
func (h *SessionHandler) Start(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.SessionStartInput{
		RunnerID:   req.RunnerID,
		RunnerName: req.RunnerName,
		Doctors:    req.Doctors,
	}
	if input.RunnerID == "" {
		input.RunnerID = principal.Staff.ID
	}
	if input.RunnerName == "" {
		input.RunnerName = principal.Staff.Name
	}

	session, err := h.sessions.Start(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": sessionResponse(session)})
}

// Advance POST /queue/session/advance.
func (h *SessionHandler) Advance(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.AdvanceSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.sessions.Advance(c.UserContext(), req.SessionID, principal.Staff.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// UpdateDoctors PUT /queue/session/doctors.
func (h *SessionHandler) UpdateDoctors(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.UpdateDoctorsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.sessions.UpdateDoctors(c.UserContext(), req.SessionID, principal.Staff.ID, req.Doctors)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Stop POST /queue/session/stop.
func (h *SessionHandler) Stop(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.StopSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	stoppedBy := req.StoppedBy
	if stoppedBy == "" {
		stoppedBy = principal.Staff.ID
	}
	record, err := h.sessions.Stop(c.UserContext(), req.SessionID, stoppedBy)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyRecordResponse(service.HistoryRecordView{Record: *record})})
}

// Current GET /queue/session.
func (h *SessionHandler) Current(c *fiber.Ctx) error {
	session, err := h.sessions.Current(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

func sessionResponse(session *domain.QueueSession) dto.SessionResponse {
	doctors := session.Doctors
	if doctors == nil {
		doctors = []domain.Doctor{}
	}
	return dto.SessionResponse{
		ID:                session.ID,
		IsRunning:         session.IsRunning,
		CurrentQueueIndex: session.CurrentQueueIndex,
		RunnerID:          session.RunnerID,
		RunnerName:        session.RunnerName,
		Doctors:           doctors,
		StartTime:         session.StartTime,
		ElapsedMs:         session.ElapsedMs,
		LastUpdated:       session.LastUpdated,
	}
}
