package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
)

// CSRFConfig protects every unsafe request with a double-submit token read
// from the csrf_token form field.
func CSRFConfig(secure bool) csrf.Config {
	return csrf.Config{
		KeyLookup:      "form:csrf_token",
		CookieName:     csrfCookieName,
		CookieSameSite: "Lax",
		CookieHTTPOnly: true,
		CookieSecure:   secure,
		Expiration:     12 * time.Hour,
		ContextKey:     contextCSRFKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if acceptsJSON(c) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid csrf token"})
			}
			return c.Status(fiber.StatusForbidden).SendString("Forbidden: invalid or missing CSRF token")
		},
	}
}
