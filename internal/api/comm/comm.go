package comm

import (
	"match_sync_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// ConnectCheck health endpoint for the bridge
func ConnectCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// DebugLogFlag toggle debug logging at runtime
func DebugLogFlag(c *fiber.Ctx) error {
	type request struct {
		Debug bool `json:"debug"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	logger.Log.SetDebugMode(req.Debug)
	return c.JSON(fiber.Map{"debug": req.Debug})
}
