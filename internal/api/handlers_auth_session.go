package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const defaultAdminRedirect = "/admin"

func (handler *Handler) ShowLoginPage(c *fiber.Ctx) error {
	next := sanitizeRedirectPath(c.Query("next"), defaultAdminRedirect)
	if handler.hasAdminSession(c) {
		return c.Redirect(next, fiber.StatusSeeOther)
	}
	return handler.renderLogin(c, next, "")
}

func (handler *Handler) Login(c *fiber.Ctx) error {
	next := sanitizeRedirectPath(c.FormValue("next"), defaultAdminRedirect)
	key := clientKey(c)
	now := handler.now()

	if handler.loginLimiter.blocked(key, now) {
		handler.logger.Warn("login rate limited", zap.String("client", key))
		c.Status(fiber.StatusTooManyRequests)
		return handler.renderLogin(c, next, "Too many failed attempts. Try again later.")
	}

	password := c.FormValue("password")
	if password == "" || bcrypt.CompareHashAndPassword(handler.passwordHash, []byte(password)) != nil {
		handler.loginLimiter.recordFailure(key, now)
		handler.logger.Info("login failed", zap.String("client", key))
		c.Status(fiber.StatusUnauthorized)
		return handler.renderLogin(c, next, "Incorrect password.")
	}

	handler.loginLimiter.reset(key)
	if err := handler.setSessionCookie(c); err != nil {
		handler.logger.Error("issue session", zap.Error(err))
		c.Status(fiber.StatusInternalServerError)
		return handler.renderLogin(c, next, "Could not start a session.")
	}
	handler.logger.Info("admin logged in", zap.String("client", key))
	return redirectTo(c, next)
}

func (handler *Handler) Logout(c *fiber.Ctx) error {
	handler.clearSessionCookie(c)
	handler.setFlash(c, FlashPayload{Notice: "Logged out."})
	return redirectTo(c, "/")
}

func (handler *Handler) renderLogin(c *fiber.Ctx, next string, errorMessage string) error {
	return handler.render(c, "login", fiber.Map{
		"Title":        "Log in | Lab Notes",
		"Next":         next,
		"ErrorMessage": errorMessage,
		"IsAdmin":      false,
	})
}
