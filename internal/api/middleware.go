package api

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
)

const (
	sessionCookieName = "labnotes_session"
	flashCookieName   = "labnotes_flash"
	csrfCookieName    = "labnotes_csrf"
	contextAdminKey   = "is_admin"
	contextCSRFKey    = "csrf"
)

// AdminRequired lets authenticated admin requests through and sends
// everyone else to the login page.
func (handler *Handler) AdminRequired(c *fiber.Ctx) error {
	if !handler.hasAdminSession(c) {
		if acceptsJSON(c) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		return c.Redirect("/login?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusSeeOther)
	}
	c.Locals(contextAdminKey, true)
	return c.Next()
}

func isAdminRequest(c *fiber.Ctx) bool {
	admin, _ := c.Locals(contextAdminKey).(bool)
	return admin
}
