package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-queue/internal/service"
)

// DisplayHandler serves the public display board.
type DisplayHandler struct {
	display *service.DisplayService
}

// NewDisplayHandler constructs handler.
func NewDisplayHandler(display *service.DisplayService) *DisplayHandler {
	return &DisplayHandler{display: display}
}

// Board GET /display/board.
func (h *DisplayHandler) Board(c *fiber.Ctx) error {
	snapshot, err := h.display.Board(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshot})
}
