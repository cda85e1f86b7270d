package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// HealthCheck returns a simple health check response.
func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}

// ReadyCheck reports ready once running returns true.
func ReadyCheck(running func() bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if running == nil || !running() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	}
}
