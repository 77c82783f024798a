package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/terraincognita07/labnotes/internal/models"
	"gorm.io/gorm"
)

// EntryRepository persists entries and their asset rows. It never touches
// asset files; callers pair it with the upload store.
type EntryRepository struct {
	database *gorm.DB
	now      func() time.Time
}

func NewEntryRepository(database *gorm.DB) *EntryRepository {
	return &EntryRepository{
		database: database,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock returns a copy of the repository that stamps rows using now.
func (repo *EntryRepository) WithClock(now func() time.Time) *EntryRepository {
	return &EntryRepository{database: repo.database, now: now}
}

// Transaction runs fn against a repository bound to a single database
// transaction. Any error returned by fn rolls the transaction back.
func (repo *EntryRepository) Transaction(fn func(tx *EntryRepository) error) error {
	return repo.database.Transaction(func(tx *gorm.DB) error {
		return fn(&EntryRepository{database: tx, now: repo.now})
	})
}

func (repo *EntryRepository) CreateEntry(entryDate string, title string, bodyMarkdown string) (uint, error) {
	canonicalDate, err := canonicalEntryDate(entryDate)
	if err != nil {
		return 0, err
	}

	timestamp := repo.now()
	entry := models.Entry{
		EntryDate:    canonicalDate,
		Title:        title,
		BodyMarkdown: bodyMarkdown,
		CreatedAt:    timestamp,
		UpdatedAt:    timestamp,
	}
	if err := repo.database.Create(&entry).Error; err != nil {
		return 0, translateError(err)
	}
	return entry.ID, nil
}

func (repo *EntryRepository) UpdateEntry(entryID uint, title string, bodyMarkdown string, entryDate string) error {
	canonicalDate, err := canonicalEntryDate(entryDate)
	if err != nil {
		return err
	}

	result := repo.database.Model(&models.Entry{}).Where("id = ?", entryID).Updates(map[string]any{
		"entry_date":    canonicalDate,
		"title":         title,
		"body_markdown": bodyMarkdown,
		"updated_at":    repo.now(),
	})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEntry removes the entry row; asset rows go with it through the
// foreign key cascade.
func (repo *EntryRepository) DeleteEntry(entryID uint) error {
	result := repo.database.Delete(&models.Entry{}, entryID)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (repo *EntryRepository) CountEntries() (int64, error) {
	var count int64
	if err := repo.database.Model(&models.Entry{}).Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

// ListEntries returns entries newest first. A non-positive limit returns
// every entry from offset on.
func (repo *EntryRepository) ListEntries(limit int, offset int) ([]models.Entry, error) {
	query := repo.database.Order("entry_date DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	entries := make([]models.Entry, 0)
	if err := query.Find(&entries).Error; err != nil {
		return nil, translateError(err)
	}
	return entries, nil
}

func (repo *EntryRepository) FindEntry(entryID uint) (models.Entry, error) {
	entry := models.Entry{}
	if err := repo.database.First(&entry, entryID).Error; err != nil {
		return models.Entry{}, translateError(err)
	}
	return entry, nil
}

func (repo *EntryRepository) GetEntryWithAssets(entryID uint) (models.EntryWithAssets, error) {
	entry, err := repo.FindEntry(entryID)
	if err != nil {
		return models.EntryWithAssets{}, err
	}
	return repo.withAssets(entry)
}

// GetEntryWithAssetsByDate resolves a calendar date to its entry. Dates are
// not unique in the schema, so the most recently created entry wins.
func (repo *EntryRepository) GetEntryWithAssetsByDate(entryDate string) (models.EntryWithAssets, error) {
	canonicalDate, err := canonicalEntryDate(entryDate)
	if err != nil {
		return models.EntryWithAssets{}, err
	}

	entry := models.Entry{}
	if err := repo.database.Where("entry_date = ?", canonicalDate).Order("id DESC").First(&entry).Error; err != nil {
		return models.EntryWithAssets{}, translateError(err)
	}
	return repo.withAssets(entry)
}

func (repo *EntryRepository) ListDashboardRows() ([]models.DashboardRow, error) {
	rows := make([]models.DashboardRow, 0)
	err := repo.database.Raw(`
SELECT
  e.id,
  e.entry_date,
  e.title,
  e.updated_at,
  COALESCE(SUM(CASE WHEN a.kind = 'photo' THEN 1 ELSE 0 END), 0) AS photo_count,
  COALESCE(MAX(CASE WHEN a.kind = 'notebook_page' THEN 1 ELSE 0 END), 0) AS has_notebook
FROM entries AS e
LEFT JOIN assets AS a ON a.entry_id = e.id
GROUP BY e.id
ORDER BY e.entry_date DESC, e.id DESC`).Scan(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return rows, nil
}

func (repo *EntryRepository) withAssets(entry models.Entry) (models.EntryWithAssets, error) {
	assets, err := repo.ListAssets(entry.ID)
	if err != nil {
		return models.EntryWithAssets{}, err
	}
	return partitionAssets(entry, assets), nil
}

func partitionAssets(entry models.Entry, assets []models.Asset) models.EntryWithAssets {
	result := models.EntryWithAssets{
		Entry:  entry,
		Photos: make([]models.Asset, 0, len(assets)),
	}
	for index := range assets {
		asset := assets[index]
		if asset.Kind == models.AssetKindNotebookPage {
			result.Notebook = &asset
			continue
		}
		result.Photos = append(result.Photos, asset)
	}
	return result
}

func canonicalEntryDate(raw string) (string, error) {
	_, canonical, err := models.ParseEntryDate(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: entry date %q is not YYYY-MM-DD", ErrInvalidInput, raw)
	}
	return canonical, nil
}
