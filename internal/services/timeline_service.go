package services

import (
	"errors"
	"html/template"
	"time"

	"github.com/terraincognita07/labnotes/internal/db"
	"github.com/terraincognita07/labnotes/internal/models"
)

const DefaultEntriesPerPage = 20

type TimelineRepository interface {
	CountEntries() (int64, error)
	ListEntries(limit int, offset int) ([]models.Entry, error)
	ListEntriesWithAssets(entries []models.Entry) ([]models.EntryWithAssets, error)
	GetEntryWithAssets(entryID uint) (models.EntryWithAssets, error)
	GetEntryWithAssetsByDate(entryDate string) (models.EntryWithAssets, error)
	ListDashboardRows() ([]models.DashboardRow, error)
}

type BodyRenderer interface {
	RenderEntry(entryID uint, updatedAt time.Time, source string) (template.HTML, error)
}

type TimelineEntry struct {
	models.EntryWithAssets
	BodyHTML template.HTML
}

type TimelinePage struct {
	Entries    []TimelineEntry
	Page       int
	PerPage    int
	TotalPages int
	Total      int64
}

func (page TimelinePage) HasPrev() bool {
	return page.Page > 1
}

func (page TimelinePage) HasNext() bool {
	return page.Page < page.TotalPages
}

func (page TimelinePage) PrevPage() int {
	return page.Page - 1
}

func (page TimelinePage) NextPage() int {
	return page.Page + 1
}

// TimelineService serves the read-only views. It never writes.
type TimelineService struct {
	entries  TimelineRepository
	renderer BodyRenderer
}

func NewTimelineService(entries TimelineRepository, renderer BodyRenderer) *TimelineService {
	return &TimelineService{entries: entries, renderer: renderer}
}

// Page returns one page of entries, newest first. Out-of-range page
// numbers are clamped to the first or last page.
func (service *TimelineService) Page(page int, perPage int) (TimelinePage, error) {
	if perPage <= 0 {
		perPage = DefaultEntriesPerPage
	}

	total, err := service.entries.CountEntries()
	if err != nil {
		return TimelinePage{}, err
	}
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	if totalPages < 1 {
		totalPages = 1
	}
	page = clampPage(page, totalPages)

	entries, err := service.entries.ListEntries(perPage, (page-1)*perPage)
	if err != nil {
		return TimelinePage{}, err
	}
	withAssets, err := service.entries.ListEntriesWithAssets(entries)
	if err != nil {
		return TimelinePage{}, err
	}

	result := TimelinePage{
		Entries:    make([]TimelineEntry, 0, len(withAssets)),
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Total:      total,
	}
	for _, entry := range withAssets {
		rendered, err := service.render(entry)
		if err != nil {
			return TimelinePage{}, err
		}
		result.Entries = append(result.Entries, rendered)
	}
	return result, nil
}

func (service *TimelineService) Entry(entryID uint) (TimelineEntry, error) {
	entry, err := service.entries.GetEntryWithAssets(entryID)
	if err != nil {
		return TimelineEntry{}, err
	}
	return service.render(entry)
}

// EntryByDate resolves a YYYY-MM-DD date. Malformed dates are reported as
// not found.
func (service *TimelineService) EntryByDate(entryDate string) (TimelineEntry, error) {
	entry, err := service.entries.GetEntryWithAssetsByDate(entryDate)
	if errors.Is(err, db.ErrInvalidInput) {
		return TimelineEntry{}, ErrNotFound
	}
	if err != nil {
		return TimelineEntry{}, err
	}
	return service.render(entry)
}

func (service *TimelineService) Dashboard() ([]models.DashboardRow, error) {
	return service.entries.ListDashboardRows()
}

func (service *TimelineService) render(entry models.EntryWithAssets) (TimelineEntry, error) {
	body, err := service.renderer.RenderEntry(entry.Entry.ID, entry.Entry.UpdatedAt, entry.Entry.BodyMarkdown)
	if err != nil {
		return TimelineEntry{}, err
	}
	return TimelineEntry{EntryWithAssets: entry, BodyHTML: body}, nil
}

func clampPage(page int, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
