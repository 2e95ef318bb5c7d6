package middlewares

import (
	"github.com/gofiber/fiber/v2"
)

// SessionGate rejects bridge calls until the sync session has started.
// The bridge is loopback only, auth itself is handled by the app shell.
func SessionGate(ready func() bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !ready() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "sync session not started",
			})
		}
		return c.Next()
	}
}
