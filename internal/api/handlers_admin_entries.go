package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/labnotes/internal/services"
	"go.uber.org/zap"
)

func (handler *Handler) ShowDashboard(c *fiber.Ctx) error {
	rows, err := handler.timeline.Dashboard()
	if err != nil {
		return handler.readFailure(c, "load dashboard", err)
	}
	return handler.render(c, "admin_dashboard", fiber.Map{
		"Title": "Admin | Lab Notes",
		"Rows":  rows,
	})
}

func (handler *Handler) ShowNewEntryForm(c *fiber.Ctx) error {
	return handler.renderEntryForm(c, handler.newEntryFormView())
}

func (handler *Handler) CreateEntry(c *fiber.Ctx) error {
	submitted := readEntryForm(c)
	entryID, err := handler.publisher.Publish(submitted.entryInput(c))
	if err != nil {
		return handler.entryWriteFailure(c, handler.newEntryFormView().withSubmitted(submitted), err)
	}

	handler.logger.Info("entry published", zap.Uint("entry_id", entryID))
	handler.setFlash(c, FlashPayload{Notice: "Entry published."})
	return redirectTo(c, entryPath(entryID))
}

func (handler *Handler) ShowEditEntryForm(c *fiber.Ctx) error {
	entryID, ok := parseIDParam(c, "id")
	if !ok {
		return handler.NotFound(c)
	}
	entry, err := handler.timeline.Entry(entryID)
	if err != nil {
		return handler.readFailure(c, "load entry for edit", err)
	}
	return handler.renderEntryForm(c, editFormViewFromEntry(entry.EntryWithAssets))
}

func (handler *Handler) UpdateEntry(c *fiber.Ctx) error {
	entryID, ok := parseIDParam(c, "id")
	if !ok {
		return handler.NotFound(c)
	}
	submitted := readEntryForm(c)
	if err := handler.publisher.Edit(entryID, submitted.entryEdit(c)); err != nil {
		entry, loadErr := handler.timeline.Entry(entryID)
		if loadErr != nil {
			return handler.readFailure(c, "reload entry after failed edit", loadErr)
		}
		return handler.entryWriteFailure(c, editFormViewFromEntry(entry.EntryWithAssets).withSubmitted(submitted), err)
	}

	handler.logger.Info("entry updated", zap.Uint("entry_id", entryID))
	handler.setFlash(c, FlashPayload{Notice: "Entry saved."})
	return redirectTo(c, entryPath(entryID))
}

func (handler *Handler) DeleteEntry(c *fiber.Ctx) error {
	entryID, ok := parseIDParam(c, "id")
	if !ok {
		return handler.NotFound(c)
	}
	if err := handler.publisher.Delete(entryID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return handler.NotFound(c)
		}
		handler.logger.Error("delete entry", zap.Uint("entry_id", entryID), zap.Error(err))
		handler.setFlash(c, FlashPayload{Error: "The entry could not be deleted."})
		return redirectTo(c, "/admin")
	}

	handler.logger.Info("entry deleted", zap.Uint("entry_id", entryID))
	handler.setFlash(c, FlashPayload{Notice: "Entry deleted."})
	return redirectTo(c, "/admin")
}

func (handler *Handler) DeleteAsset(c *fiber.Ctx) error {
	assetID, ok := parseIDParam(c, "id")
	if !ok {
		return handler.NotFound(c)
	}
	entryID, err := handler.publisher.RemoveAsset(assetID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return handler.NotFound(c)
		}
		handler.logger.Error("delete asset", zap.Uint("asset_id", assetID), zap.Error(err))
		handler.setFlash(c, FlashPayload{Error: "The file could not be removed."})
		return redirectTo(c, "/admin")
	}

	handler.logger.Info("asset removed", zap.Uint("asset_id", assetID), zap.Uint("entry_id", entryID))
	handler.setFlash(c, FlashPayload{Notice: "File removed."})
	return redirectTo(c, editEntryPath(entryID))
}

func (handler *Handler) renderEntryForm(c *fiber.Ctx, view entryFormView) error {
	return handler.render(c, "admin_form", fiber.Map{
		"Title": view.pageTitle(),
		"Form":  view,
	})
}

// entryWriteFailure re-renders the form with the submitted values and a
// status matching the error class.
func (handler *Handler) entryWriteFailure(c *fiber.Ctx, view entryFormView, err error) error {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.Status(fiber.StatusBadRequest)
		view.ErrorMessage = validationErr.Error()
	case errors.Is(err, services.ErrConstraintViolation):
		c.Status(fiber.StatusUnprocessableEntity)
		view.ErrorMessage = "An entry can have only one notebook page. Nothing was saved."
	case errors.Is(err, services.ErrNotFound):
		c.Status(fiber.StatusNotFound)
		view.ErrorMessage = "A photo in the form no longer belongs to this entry. Nothing was saved."
	default:
		handler.logger.Error("save entry", zap.Uint("entry_id", view.EntryID), zap.Error(err))
		c.Status(fiber.StatusInternalServerError)
		view.ErrorMessage = "Saving failed. Nothing was saved."
	}
	return handler.renderEntryForm(c, view)
}
