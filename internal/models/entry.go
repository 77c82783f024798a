package models

import "time"

// DateLayout is the storage and URL format of an entry date.
const DateLayout = "2006-01-02"

type Entry struct {
	ID           uint      `gorm:"primaryKey"`
	EntryDate    string    `gorm:"column:entry_date;type:text;not null;index:idx_entries_date,sort:desc"`
	Title        string    `gorm:"not null;default:''"`
	BodyMarkdown string    `gorm:"column:body_markdown;not null;default:''"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// EntryWithAssets is an entry with its assets split by kind. Photos are
// ordered by sort index, then id.
type EntryWithAssets struct {
	Entry    Entry
	Notebook *Asset
	Photos   []Asset
}

// DashboardRow summarises an entry for the admin overview.
type DashboardRow struct {
	ID          uint      `gorm:"column:id"`
	EntryDate   string    `gorm:"column:entry_date"`
	Title       string    `gorm:"column:title"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
	PhotoCount  int       `gorm:"column:photo_count"`
	HasNotebook bool      `gorm:"column:has_notebook"`
}

// ParseEntryDate parses a YYYY-MM-DD value and returns its canonical form.
func ParseEntryDate(raw string) (time.Time, string, error) {
	parsed, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, "", err
	}
	return parsed, parsed.Format(DateLayout), nil
}
