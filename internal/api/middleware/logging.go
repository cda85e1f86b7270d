package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger returns a request logging middleware. A nil logger uses
// slog.Default(). Requests to skip paths are not logged.
func Logger(logger *slog.Logger, skip ...string) fiber.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		if skipped[c.Path()] {
			return err
		}

		log := logger
		if log == nil {
			log = slog.Default()
		}

		duration := time.Since(start)
		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", duration.Milliseconds(),
			"request_id", c.Locals("requestid"),
		}
		if err != nil {
			attrs = append(attrs, "error", err)
		}

		switch {
		case status >= 500:
			log.Error("request completed", attrs...)
		case status >= 400:
			log.Warn("request completed", attrs...)
		default:
			log.Debug("request completed", attrs...)
		}

		return err
	}
}
