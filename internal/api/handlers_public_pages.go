package api

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/labnotes/internal/services"
	"go.uber.org/zap"
)

func (handler *Handler) ShowTimeline(c *fiber.Ctx) error {
	page := 1
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			page = parsed
		}
	}

	timeline, err := handler.timeline.Page(page, handler.entriesPerPage)
	if err != nil {
		return handler.readFailure(c, "load timeline", err)
	}
	return handler.render(c, "index", fiber.Map{
		"Title":    "Lab Notes",
		"Timeline": timeline,
	})
}

func (handler *Handler) ShowEntry(c *fiber.Ctx) error {
	entryID, ok := parseIDParam(c, "id")
	if !ok {
		return handler.NotFound(c)
	}
	entry, err := handler.timeline.Entry(entryID)
	if err != nil {
		return handler.readFailure(c, "load entry", err)
	}
	return handler.renderEntryPage(c, entry)
}

func (handler *Handler) ShowDay(c *fiber.Ctx) error {
	entry, err := handler.timeline.EntryByDate(strings.TrimSpace(c.Params("date")))
	if err != nil {
		return handler.readFailure(c, "load entry by date", err)
	}
	return handler.renderEntryPage(c, entry)
}

func (handler *Handler) renderEntryPage(c *fiber.Ctx, entry services.TimelineEntry) error {
	title := entry.Entry.Title
	if title == "" {
		title = entry.Entry.EntryDate
	}
	return handler.render(c, "entry", fiber.Map{
		"Title":     title + " | Lab Notes",
		"Item":      entry,
		"DeleteURL": "/admin/delete/" + strconv.FormatUint(uint64(entry.Entry.ID), 10),
	})
}

func (handler *Handler) readFailure(c *fiber.Ctx, action string, err error) error {
	if errors.Is(err, services.ErrNotFound) {
		return handler.NotFound(c)
	}
	handler.logger.Error(action, zap.String("path", c.Path()), zap.Error(err))
	c.Status(fiber.StatusInternalServerError)
	return handler.render(c, "not_found", fiber.Map{
		"Title":   "Something went wrong | Lab Notes",
		"Heading": "Something went wrong",
		"Message": "The notebook could not be loaded. Please try again.",
	})
}
