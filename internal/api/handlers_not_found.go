package api

import (
	"github.com/gofiber/fiber/v2"
)

func (handler *Handler) NotFound(c *fiber.Ctx) error {
	if acceptsJSON(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	if isHTMX(c) {
		return c.Status(fiber.StatusNotFound).SendString("<div class=\"status-error\">Page not found</div>")
	}

	c.Status(fiber.StatusNotFound)
	return handler.render(c, "not_found", fiber.Map{
		"Title":   "Not found | Lab Notes",
		"Heading": "Page not found",
		"Message": "There is no notebook entry here.",
	})
}
