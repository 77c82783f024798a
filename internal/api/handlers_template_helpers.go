package api

import (
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/terraincognita07/labnotes/internal/models"
)

func (handler *Handler) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"humanDate":     templateHumanDate,
		"formatTime":    handler.templateFormatTime,
		"relativeTime":  handler.templateRelativeTime,
		"mediaURL":      templateMediaURL,
		"entryPath":     entryPath,
		"editPath":      editEntryPath,
		"isActiveRoute": isActiveTemplateRoute,
		"dict":          templateDict,
		"seq":           templateSeq,
	}
}

// templateHumanDate turns a stored entry date into "Monday, 2 January 2006".
// Malformed values are shown as stored.
func templateHumanDate(entryDate string) string {
	parsed, _, err := models.ParseEntryDate(entryDate)
	if err != nil {
		return entryDate
	}
	return parsed.Format("Monday, 2 January 2006")
}

func (handler *Handler) templateFormatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.In(handler.location).Format("2006-01-02 15:04")
}

func (handler *Handler) templateRelativeTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return humanize.RelTime(value, handler.now(), "ago", "from now")
}
