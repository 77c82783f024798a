package api

import "github.com/gofiber/fiber/v2"

const mediaMaxAgeSeconds = 86400

func RegisterRoutes(app *fiber.App, handler *Handler) {
	registerPageRoutes(app, handler)
	registerAdminRoutes(app, handler)
}

// RegisterStaticRoutes serves stylesheets and the upload tree. Uploaded
// files never change once written, so they are cached for a day.
func RegisterStaticRoutes(app *fiber.App, staticDir string, uploadDir string) {
	app.Static("/static", staticDir)
	app.Static("/media", uploadDir, fiber.Static{
		MaxAge: mediaMaxAgeSeconds,
		Browse: false,
	})
}

// RegisterNotFound must run after every other route.
func RegisterNotFound(app *fiber.App, handler *Handler) {
	app.Use(handler.NotFound)
}

func registerPageRoutes(app *fiber.App, handler *Handler) {
	app.Get("/healthz", handler.Health)
	app.Get("/favicon.ico", sendNoContent)

	app.Get("/", handler.ShowTimeline)
	app.Get("/entry/:id", handler.ShowEntry)
	app.Get("/day/:date", handler.ShowDay)

	app.Get("/login", handler.ShowLoginPage)
	app.Post("/login", handler.Login)
	app.Post("/logout", handler.Logout)
}

func registerAdminRoutes(app *fiber.App, handler *Handler) {
	admin := app.Group("/admin", handler.AdminRequired)
	admin.Get("", handler.ShowDashboard)
	admin.Get("/new", handler.ShowNewEntryForm)
	admin.Post("/new", handler.CreateEntry)
	admin.Get("/edit/:id", handler.ShowEditEntryForm)
	admin.Post("/edit/:id", handler.UpdateEntry)
	admin.Post("/delete/:id", handler.DeleteEntry)
	admin.Post("/assets/:id/delete", handler.DeleteAsset)
}

func sendNoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
