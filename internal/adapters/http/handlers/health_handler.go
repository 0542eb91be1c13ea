package handlers

import (
	"loyaltyhub/internal/config"
	"loyaltyhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check endpoints
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Root handles the root endpoint
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return response.Success(c, "LoyaltyHub API", fiber.Map{
		"service": "loyaltyhub",
		"status":  "running",
	})
}

// HealthCheck handles health check
// @Summary Health check
// @Description Check service and database health
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	if err := config.HealthCheck(); err != nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "Database unavailable")
	}
	return response.Success(c, "OK", fiber.Map{
		"database": "up",
	})
}
